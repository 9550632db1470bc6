package procstat

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// counterFields is the number of counters on a cpu line.
const counterFields = 10

// Parse reads every line starting with "cpu" from r and stores one record per
// line in dst, which is used up to its capacity. It returns dst resliced to
// the number of records read.
//
// Parse fails with ErrCapacityExceeded if r holds more cpu lines than
// cap(dst). dst may be modified even on failure. Only a successful call seeks
// r back to its start, so the next call reads a fresh sample.
func Parse(r io.ReadSeeker, dst []CounterRecord) ([]CounterRecord, error) {
	dst = dst[:0]

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 && strings.HasPrefix(line, "cpu") {
			if len(dst) == cap(dst) {
				return dst, ErrCapacityExceeded
			}
			rec, perr := parseLine(line)
			if perr != nil {
				return dst, perr
			}
			dst = append(dst, rec)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return dst, fmt.Errorf("procstat: reading counters: %w", err)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return dst, fmt.Errorf("procstat: rewinding counters: %w", err)
	}
	return dst, nil
}

func parseLine(line string) (CounterRecord, error) {
	fields := strings.Fields(line)
	if len(fields) < counterFields+1 {
		return CounterRecord{}, fmt.Errorf("%w: %d fields in %q", ErrMalformed, len(fields), strings.TrimSpace(line))
	}
	if len(fields[0]) > MaxNameLen {
		return CounterRecord{}, fmt.Errorf("%w: name %q longer than %d", ErrMalformed, fields[0], MaxNameLen)
	}

	var v [counterFields]uint64
	for i := range v {
		n, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return CounterRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		v[i] = n
	}

	return CounterRecord{
		Name:      fields[0],
		User:      v[0],
		Nice:      v[1],
		System:    v[2],
		Idle:      v[3],
		IOWait:    v[4],
		IRQ:       v[5],
		SoftIRQ:   v[6],
		Steal:     v[7],
		Guest:     v[8],
		GuestNice: v[9],
	}, nil
}
