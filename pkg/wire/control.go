package wire

// Control bytes carried as the sole plaintext payload of a handshake frame.
const (
	ControlSYN    byte = 0x01
	ControlSYNACK byte = 0x02
	ControlFIN    byte = 0x03
)
