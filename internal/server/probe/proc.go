package probe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var errMalformed = errors.New("malformed input")

// CPUReading is the cumulative jiffy count from the aggregate line of
// /proc/stat.
//
//	cpu  user nice system idle iowait irq softirq steal guest guest_nice
//
// busy = user + nice + system + irq + softirq + steal
// idle = idle + iowait
//
// guest and guest_nice are already counted in user and nice.
type CPUReading struct {
	Busy uint64
	Idle uint64
}

// ParseCPUStat reads the first line of a /proc/stat document.
func ParseCPUStat(r io.Reader) (*CPUReading, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errMalformed
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) < 9 || fields[0] != "cpu" {
		return nil, fmt.Errorf("%w: cpu line %q", errMalformed, scanner.Text())
	}

	values := make([]uint64, len(fields)-1)
	for i := 1; i < len(fields); i++ {
		v, err := strconv.ParseUint(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		values[i-1] = v
	}

	return &CPUReading{
		Busy: values[0] + values[1] + values[2] + values[5] + values[6] + values[7],
		Idle: values[3] + values[4],
	}, nil
}

// CPUPercent is the busy share between two readings, rounded to one
// decimal. Zero when either reading is missing or no time passed.
func CPUPercent(previous, current *CPUReading) float64 {
	if previous == nil || current == nil {
		return 0
	}
	if current.Busy < previous.Busy || current.Idle < previous.Idle {
		return 0
	}
	busy := current.Busy - previous.Busy
	total := busy + current.Idle - previous.Idle
	if total == 0 {
		return 0
	}
	return math.Round(float64(busy)/float64(total)*1000) / 10
}

// MemoryReading holds the /proc/meminfo fields the probe reports, in bytes.
type MemoryReading struct {
	Total     uint64
	Available uint64
}

// Used is Total minus Available, never below zero.
func (m MemoryReading) Used() uint64 {
	if m.Available > m.Total {
		return 0
	}
	return m.Total - m.Available
}

// ParseMeminfo extracts MemTotal and MemAvailable from a /proc/meminfo
// document. Kernels older than 3.14 lack MemAvailable; MemFree is used
// in its place.
func ParseMeminfo(r io.Reader) (MemoryReading, error) {
	var (
		m                    MemoryReading
		free                 uint64
		haveTotal, haveAvail bool
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		if key != "MemTotal" && key != "MemAvailable" && key != "MemFree" {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return m, fmt.Errorf("%w: %s: %v", errMalformed, key, err)
		}
		if len(fields) > 2 && fields[2] == "kB" {
			v *= 1024
		}
		switch key {
		case "MemTotal":
			m.Total, haveTotal = v, true
		case "MemAvailable":
			m.Available, haveAvail = v, true
		case "MemFree":
			free = v
		}
	}
	if err := scanner.Err(); err != nil {
		return m, err
	}
	if !haveTotal {
		return m, fmt.Errorf("%w: MemTotal missing", errMalformed)
	}
	if !haveAvail {
		m.Available = free
	}
	return m, nil
}

// DiskReading is filesystem usage in bytes.
type DiskReading struct {
	Total uint64
	Used  uint64
	Free  uint64
}
