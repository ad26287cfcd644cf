//go:build !windows

package java

func registryHomes() []string { return nil }
