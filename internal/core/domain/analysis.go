package domain

import "fmt"

// AnalysisType identifies one of the two supported pipelines. The set is
// closed: routing to a remote host depends on it and there is deliberately
// no default branch.
type AnalysisType string

const (
	AnalysisWGS     AnalysisType = "wgs"     // bacterial whole genome sequencing
	AnalysisSpecies AnalysisType = "species" // animal species differentiation
)

// AnalysisTypes lists all valid types in routing order.
var AnalysisTypes = []AnalysisType{AnalysisWGS, AnalysisSpecies}

// ParseAnalysisType validates a free-text type. Required for run; get_log
// and kill tolerate unknown values (see remote.Router.RouteLoose).
func ParseAnalysisType(s string) (AnalysisType, error) {
	switch AnalysisType(s) {
	case AnalysisWGS:
		return AnalysisWGS, nil
	case AnalysisSpecies:
		return AnalysisSpecies, nil
	default:
		return "", fmt.Errorf("invalid analysis type: %q (valid: wgs, species)", s)
	}
}

// RemoteStatus is what the remote status probe reports. Absence of the PID
// file means not_found, never "definitely not running": the process may
// have exited and been reaped between probe and file read.
type RemoteStatus string

const (
	RemoteStatusRunning  RemoteStatus = "running"
	RemoteStatusFinished RemoteStatus = "finished"
	RemoteStatusNotFound RemoteStatus = "not_found"
)
