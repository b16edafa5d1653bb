// Package expression substitutes #{...} references in artifact property values.
//
// Supported references are jobParameters['key'], jobProperties['key'] and
// partitionPlan['key']. A reference may carry a default, as in
// #{jobParameters['limit']}?:100; which yields 100 when the key is absent.
// Unresolved references without a default become empty strings.
package expression

import (
	"regexp"
	"strings"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

var referencePattern = regexp.MustCompile(`#\{\s*(jobParameters|jobProperties|partitionPlan)\['([^']+)'\]\s*\}(?:\?:([^;]*);)?`)

// HasReference reports whether value contains a reference.
func HasReference(value string) bool {
	return referencePattern.MatchString(value)
}

// Resolve substitutes the references in value from sc. sc may be nil.
func Resolve(value string, sc *port.StepContext) string {
	if !HasReference(value) {
		return value
	}
	return referencePattern.ReplaceAllStringFunc(value, func(match string) string {
		m := referencePattern.FindStringSubmatch(match)
		source, key, fallback := m[1], m[2], m[3]
		if v, ok := lookup(source, key, sc); ok {
			return v
		}
		if !strings.HasSuffix(match, ";") {
			logger.Debugf("ExpressionResolver: %s['%s'] is not set.", source, key)
		}
		return fallback
	})
}

func lookup(source, key string, sc *port.StepContext) (string, bool) {
	if sc == nil {
		return "", false
	}
	switch source {
	case "jobParameters":
		v, ok := sc.Parameters().Strings()[key]
		return v, ok
	case "jobProperties":
		if sc.JobDefinition == nil {
			return "", false
		}
		v, ok := sc.JobDefinition.Properties[key]
		return v, ok
	case "partitionPlan":
		if sc.Partition == nil {
			return "", false
		}
		v, ok := sc.Partition.Plan[key]
		return v, ok
	}
	return "", false
}
