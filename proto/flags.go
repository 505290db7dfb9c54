package proto

// File mode bits for Attr.Mode, used by the attribute mapper to classify an
// entry's type (directory, symlink, FIFO/char/block/socket, regular).
const (
	ModeTypeMask uint32 = 0170000 // Mask for file type

	ModeSocket  uint32 = 0140000
	ModeSymlink uint32 = 0120000
	ModeRegular uint32 = 0100000
	ModeBlock   uint32 = 0060000
	ModeDir     uint32 = 0040000
	ModeChar    uint32 = 0020000
	ModeFifo    uint32 = 0010000

	ModePermMask uint32 = 0777 // Mask for permission bits
)
