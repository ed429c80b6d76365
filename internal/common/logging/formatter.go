package logging

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter prints the message followed by any fields as key=value pairs, for commands whose output is
// read by a person rather than collected.  Warnings and errors are prefixed with their level.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	if entry.Level <= log.WarnLevel {
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteString("\n")
	return []byte(b.String()), nil
}
