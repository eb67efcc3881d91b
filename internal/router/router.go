// Package router maps a classified intent onto an execution path.
//
// The split is the pipeline's core invariant: local work (file and
// shell operations, canned replies) must never wait on remote
// dependency health, so Local plans bypass the governor and the
// circuit breakers entirely.
package router

import (
	"github.com/otto-ai/otto/internal/classifier"
)

// Mode selects the execution path for a request.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// RoutePlan is the routing decision for one request. Built once,
// consumed by dispatch, never persisted.
type RoutePlan struct {
	Mode          Mode
	Intent        *classifier.Intent
	RequiredTools []string // the single local tool; empty for remote plans
	Reason        string
}

// Local reports whether the plan executes in-process.
func (p *RoutePlan) Local() bool {
	return p.Mode == ModeLocal
}

// Tool returns the local tool bound to the plan, or "".
func (p *RoutePlan) Tool() string {
	if len(p.RequiredTools) == 0 {
		return ""
	}
	return p.RequiredTools[0]
}

// Route maps an intent onto an execution path. Pure and total: no
// I/O, no error case, and categories outside the known set go remote
// so a new category can never strand a request.
func Route(intent *classifier.Intent) *RoutePlan {
	switch intent.Category {
	case classifier.CategoryLocationQuery:
		return local(intent, "location", "answered from the process state")
	case classifier.CategoryFileSearch:
		return local(intent, "file_search", "file listing runs in-process")
	case classifier.CategoryFileRead:
		return local(intent, "file_read", "file contents read in-process")
	case classifier.CategoryShellExecution:
		return local(intent, "shell", "command runs in-process")
	case classifier.CategoryDataAnalysis:
		return local(intent, "analyze_csv", "data summary computed in-process")
	case classifier.CategoryRemoteTool:
		return remote(intent, "needs remote tool round trips")
	case classifier.CategoryConversation:
		switch intent.Subcategory {
		case classifier.SubEmpty, classifier.SubGreeting:
			return &RoutePlan{
				Mode:   ModeLocal,
				Intent: intent,
				Reason: "canned reply, no model round trip",
			}
		}
		return remote(intent, "conversation needs the model")
	}
	return remote(intent, "unknown category defaults to remote")
}

func local(intent *classifier.Intent, tool, reason string) *RoutePlan {
	return &RoutePlan{
		Mode:          ModeLocal,
		Intent:        intent,
		RequiredTools: []string{tool},
		Reason:        reason,
	}
}

func remote(intent *classifier.Intent, reason string) *RoutePlan {
	return &RoutePlan{
		Mode:   ModeRemote,
		Intent: intent,
		Reason: reason,
	}
}
