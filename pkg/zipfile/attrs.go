package zipfile

import "strings"

const (
	// Constants for the first byte in CreatorVersion.
	creatorFAT    uint16 = 0
	creatorUnix   uint16 = 3
	creatorNTFS   uint16 = 11
	creatorVFAT   uint16 = 14
	creatorMacOSX uint16 = 19
)

const (
	// Unix constants. The specification doesn't mention them,
	// but these seem to be the values agreed on by tools.
	s_IFMT  = 0xf000
	s_IFDIR = 0x4000

	msdosDir = 0x10
)

// isDirectory reports whether a central directory header describes a directory,
// either by a trailing slash or by the directory bit of the external attributes.
func isDirectory(name string, creatorVersion uint16, externalAttrs uint32) bool {
	if strings.HasSuffix(name, "/") {
		return true
	}
	switch creatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		return (externalAttrs>>16)&s_IFMT == s_IFDIR
	case creatorNTFS, creatorVFAT, creatorFAT:
		return externalAttrs&msdosDir != 0
	}
	return false
}
