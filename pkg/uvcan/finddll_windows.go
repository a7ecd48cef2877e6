package uvcan

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

const dllName = "u3cankvl.dll"

// DefaultLibrary locates the wrapper DLL. The Kvaser runtime install
// directory from the registry is tried first, then the plain DLL name
// is left for the system search path.
func DefaultLibrary() string {
	for _, key := range []string{
		`SOFTWARE\KVASER AB\CANLIB32`,
		`SOFTWARE\WOW6432Node\KVASER AB\CANLIB32`,
	} {
		k, err := registry.OpenKey(registry.LOCAL_MACHINE, key, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		dir, _, err := k.GetStringValue("InstallDir")
		k.Close()
		if err != nil {
			continue
		}
		candidate := filepath.Join(dir, dllName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return dllName
}
