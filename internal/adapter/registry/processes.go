package registry

import (
	"regexp"
	"strconv"
	"strings"

	"fledge/pkg/types"
)

var serviceModuleRe = regexp.MustCompile(`fledge\.services\.([a-z_]+)`)

var serviceTypes = map[string]string{
	"core":         "Core",
	"storage":      "Storage",
	"south":        "Southbound",
	"north":        "Northbound",
	"notification": "Notification",
	"dispatcher":   "Dispatcher",
	"bucket":       "BucketStorage",
	"management":   "Management",
}

// ParseServiceProcess reads a service record from one ps line of a
// running microservice, e.g.
//
//	fledge 812 ... python3 -m fledge.services.south --port=40001 --address=127.0.0.1 --name=Sine
//
// The management port and address are the ones the service was told to
// reach the core on.
func ParseServiceProcess(line string) (types.ServiceRecord, bool) {
	m := serviceModuleRe.FindStringSubmatch(line)
	if m == nil {
		return types.ServiceRecord{}, false
	}
	typ, ok := serviceTypes[m[1]]
	if !ok {
		return types.ServiceRecord{}, false
	}

	rec := types.ServiceRecord{Type: typ, Protocol: "http", Status: "running"}
	rest := line[strings.Index(line, m[0])+len(m[0]):]
	inName := false
	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(strings.TrimLeft(field, "-"), "=")
		if !ok || !strings.HasPrefix(field, "--") {
			// ps joins arguments with spaces, so a name may span fields.
			if inName {
				rec.Name += " " + field
			}
			continue
		}
		inName = key == "name"
		switch key {
		case "name":
			rec.Name = value
		case "address":
			rec.Address = value
		case "port":
			if p, err := strconv.Atoi(value); err == nil {
				rec.ManagementPort = p
			}
		}
	}
	if rec.Name == "" {
		// The core and storage run without --name.
		if typ != "Core" && typ != "Storage" {
			return types.ServiceRecord{}, false
		}
		rec.Name = "Fledge " + typ
	}
	return rec, true
}

// LoadProcesses registers every running service found in lines and returns
// how many were added. Lines that are not services, or repeat a name, are
// ignored.
func (d *Directory) LoadProcesses(lines []string) int {
	added := 0
	for _, l := range lines {
		rec, ok := ParseServiceProcess(l)
		if !ok {
			continue
		}
		if _, err := d.Register(rec); err == nil {
			added++
		}
	}
	return added
}
