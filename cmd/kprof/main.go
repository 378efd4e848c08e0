// Command kprof turns a snapshot read from the kernel's "stat" devfs
// device into a pprof profile, so scheduler/allocator counters can be
// inspected with `go tool pprof` -- the Go-native equivalent of the
// profiling support the teacher's go.mod carries (github.com/google/
// pprof) for its own build tooling, here given a concrete kernel-facing
// use instead (spec.md has no profiler of its own; SPEC_FULL.md section
// 2 assigns pprof to this device-to-profile conversion).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
)

// parseSnapshot reads the "#Field: value" lines the devfs stat device
// renders (devfs.StatDevice.render) into a map.
func parseSnapshot(r *bufio.Reader) (map[string]int64, error) {
	out := map[string]int64{}
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			line = strings.TrimPrefix(line, "#")
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if n, perr := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); perr == nil {
					out[strings.TrimSpace(parts[0])] = n
				}
			}
		}
		if err != nil {
			break
		}
	}
	return out, nil
}

func main() {
	in := flag.String("in", "", "path to a captured stat-device read (defaults to stdin)")
	out := flag.String("out", "kernel.pprof", "output pprof profile path")
	flag.Parse()

	var r *bufio.Reader
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			log.Fatalf("kprof: %v", err)
		}
		defer f.Close()
		r = bufio.NewReader(f)
	} else {
		r = bufio.NewReader(os.Stdin)
	}

	fields, err := parseSnapshot(r)
	if err != nil {
		log.Fatalf("kprof: %v", err)
	}

	valType := &profile.ValueType{Type: "samples", Unit: "count"}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{valType},
		TimeNanos:  time.Now().UnixNano(),
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	locByName := map[string]*profile.Location{}
	for i, name := range names {
		fn := &profile.Function{ID: uint64(i + 1), Name: name}
		p.Function = append(p.Function, fn)
		loc := &profile.Location{
			ID:   uint64(i + 1),
			Line: []profile.Line{{Function: fn}},
		}
		p.Location = append(p.Location, loc)
		locByName[name] = loc
	}
	for name, value := range fields {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{locByName[name]},
			Value:    []int64{value},
			Label:    map[string][]string{"counter": {name}},
		})
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("kprof: %v", err)
	}
	defer f.Close()
	if err := p.Write(f); err != nil {
		log.Fatalf("kprof: %v", err)
	}
	fmt.Printf("wrote %s (%d counters)\n", *out, len(names))
}
