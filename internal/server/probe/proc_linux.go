package probe

import (
	"os"
	"path/filepath"
)

func readCPU(procRoot string) (*CPUReading, error) {
	f, err := os.Open(filepath.Join(procRoot, "stat"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCPUStat(f)
}

func readMemory(procRoot string) (MemoryReading, error) {
	f, err := os.Open(filepath.Join(procRoot, "meminfo"))
	if err != nil {
		return MemoryReading{}, err
	}
	defer f.Close()
	return ParseMeminfo(f)
}
