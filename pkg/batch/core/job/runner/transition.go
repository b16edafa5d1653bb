package runner

import (
	"sync"

	"github.com/gobwas/glob"

	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
	logger "github.com/bryant1410/jsr352/pkg/batch/support/util/logger"
)

var patterns sync.Map // string -> glob.Glob

// matchTransition returns the first transition whose On pattern matches exit.
// "*" matches any run of characters and "?" exactly one.
func matchTransition(transitions []model.Transition, exit model.ExitStatus) (model.Transition, bool) {
	for _, t := range transitions {
		g, err := compile(t.On)
		if err != nil {
			logger.Warnf("JobRunner: Ignoring transition with invalid pattern '%s': %v", t.On, err)
			continue
		}
		if g.Match(string(exit)) {
			return t, true
		}
	}
	return model.Transition{}, false
}

func compile(pattern string) (glob.Glob, error) {
	if g, ok := patterns.Load(pattern); ok {
		return g.(glob.Glob), nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, g)
	return g, nil
}
