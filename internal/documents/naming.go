package documents

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// VersionedName returns "{fileName}_v{version}.{ext}".
func VersionedName(fileName string, version int, ext string) string {
	return fmt.Sprintf("%s_v%d.%s", fileName, version, NormalizeExtension(ext))
}

// FileKey returns the object key "{userID}/{fileName}_v{version}.{ext}".
func FileKey(userID, fileName string, version int, ext string) string {
	return userID + "/" + VersionedName(fileName, version, ext)
}

// ParseVersionedName splits a name produced by VersionedName.
func ParseVersionedName(name string) (fileName string, version int, ext string, ok bool) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 || dot == len(name)-1 {
		return "", 0, "", false
	}
	stem, ext := name[:dot], name[dot+1:]
	marker := strings.LastIndex(stem, "_v")
	if marker <= 0 {
		return "", 0, "", false
	}
	version, err := strconv.Atoi(stem[marker+2:])
	if err != nil || version < 1 {
		return "", 0, "", false
	}
	return stem[:marker], version, ext, true
}
