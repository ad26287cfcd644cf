//go:build windows

package java

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const systemEnvRegPath = `System\CurrentControlSet\Control\Session Manager\Environment`

// JavaSoft keys written by the Oracle and OpenJDK installers
var javaSoftRegPaths = []string{
	`SOFTWARE\JavaSoft\JDK`,
	`SOFTWARE\JavaSoft\Java Development Kit`,
}

// registryHomes returns the system JAVA_HOME and every JavaHome registered
// under the JavaSoft keys.
func registryHomes() []string {
	var homes []string
	if home, err := systemJavaHome(); err == nil && home != "" {
		homes = append(homes, home)
	}

	for _, path := range javaSoftRegPaths {
		key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		versions, err := key.ReadSubKeyNames(-1)
		key.Close()
		if err != nil {
			continue
		}

		for _, version := range versions {
			sub, err := registry.OpenKey(registry.LOCAL_MACHINE, path+`\`+version, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			if home, _, err := sub.GetStringValue("JavaHome"); err == nil && home != "" {
				homes = append(homes, home)
			}
			sub.Close()
		}
	}
	return homes
}

// systemJavaHome returns the machine-wide JAVA_HOME, which may differ from
// the one inherited by this process.
func systemJavaHome() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, systemEnvRegPath, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("failed to open registry key: %w", err)
	}
	defer key.Close()

	value, valType, err := key.GetStringValue("JAVA_HOME")
	if err != nil {
		return "", fmt.Errorf("JAVA_HOME not set: %w", err)
	}
	if valType == registry.EXPAND_SZ {
		return registry.ExpandString(value)
	}
	return value, nil
}
