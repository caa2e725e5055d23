package packstream

// Marker bytes and the full 8/16/32-bit size-marker set PackStream uses to
// pick the narrowest encoding for a given value.
const (
	markerNull    byte = 0xC0
	markerFloat64 byte = 0xC1
	markerFalse   byte = 0xC2
	markerTrue    byte = 0xC3

	markerInt8  byte = 0xC8
	markerInt16 byte = 0xC9
	markerInt32 byte = 0xCA
	markerInt64 byte = 0xCB

	markerBytes8  byte = 0xCC
	markerBytes16 byte = 0xCD
	markerBytes32 byte = 0xCE

	markerString8  byte = 0xD0
	markerString16 byte = 0xD1
	markerString32 byte = 0xD2

	markerList8  byte = 0xD4
	markerList16 byte = 0xD5
	markerList32 byte = 0xD6

	markerDict8  byte = 0xD8
	markerDict16 byte = 0xD9
	markerDict32 byte = 0xDA

	tinyStringBase byte = 0x80
	tinyListBase   byte = 0x90
	tinyDictBase   byte = 0xA0
	tinyStructBase byte = 0xB0

	highNibbleMask byte = 0xF0
	lowNibbleMask  byte = 0x0F

	tinyIntMin = -16
	tinyIntMax = 127

	int8Min = -128
	int8Max = 127

	int16Min = -32768
	int16Max = 32767

	int32Min = -2147483648
	int32Max = 2147483647

	maxFieldCount = 15
)
