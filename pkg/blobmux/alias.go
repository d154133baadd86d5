package blobmux

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// AliasPrefix marks link-configuration keys that define container aliases.
// Callers may also prefix container names with it in requests, but don't
// have to: resolution strips it either way.
const AliasPrefix = "alias_"

// AliasTable maps caller-facing logical container names to the physical
// bucket names used against the backend. Built once at link creation and
// read-only for the rest of the link's lifetime.
type AliasTable map[string]string

// Resolve translates a container name supplied by a caller into the
// physical backend name. Names absent from the table pass through
// unchanged (minus the alias prefix, if present), so unresolvable names
// are never rejected here.
func (t AliasTable) Resolve(name string) string {
	candidate := strings.TrimPrefix(name, AliasPrefix)
	if physical, ok := t[candidate]; ok {
		return physical
	}
	return candidate
}

// BuildAliasTable merges provider-level alias entries (base) with the
// alias_* entries of a link-configuration map; per-link entries override.
// A malformed entry (empty alias or empty bucket) is logged and skipped,
// never fatal.
func BuildAliasTable(base map[string]string, values map[string]string, log *logrus.Entry) AliasTable {
	table := make(AliasTable, len(base)+len(values))
	for alias, bucket := range base {
		if alias == "" || bucket == "" {
			log.WithFields(logrus.Fields{"alias": alias, "bucket": bucket}).
				Error("invalid alias: name and bucket must not be empty")
			continue
		}
		table[alias] = bucket
	}
	for key, bucket := range values {
		if !strings.HasPrefix(key, AliasPrefix) {
			continue
		}
		alias := strings.TrimPrefix(key, AliasPrefix)
		if alias == "" || bucket == "" {
			log.WithFields(logrus.Fields{"alias": alias, "bucket": bucket}).
				Error("invalid alias: name and bucket must not be empty")
			continue
		}
		table[alias] = bucket
	}
	return table
}
