package utilfn

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

func GetHomeDir() string {
	homeVar, err := os.UserHomeDir()
	if err != nil {
		return "/"
	}
	return homeVar
}

func ExpandHomeDir(pathStr string) string {
	if pathStr != "~" && !strings.HasPrefix(pathStr, "~/") && (!strings.HasPrefix(pathStr, `~\`) || runtime.GOOS != "windows") {
		return filepath.Clean(pathStr)
	}
	homeDir := GetHomeDir()
	if pathStr == "~" {
		return homeDir
	}
	expandedPath := filepath.Clean(filepath.Join(homeDir, pathStr[2:]))
	return expandedPath
}

// SafePathElem turns an untrusted name (a process identifier) into a single path
// element. Separators and control characters become '_'; "", "." and ".." return fallback.
func SafePathElem(name string, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	var sb strings.Builder
	sb.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch == '/' || ch == '\\' || ch == 0:
			sb.WriteRune('_')
		case ch < 0x20 || ch == 0x7f:
			sb.WriteRune('_')
		default:
			sb.WriteRune(ch)
		}
	}
	rtn := sb.String()
	if rtn == "." || rtn == ".." {
		return fallback
	}
	return rtn
}
