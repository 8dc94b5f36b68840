// Package supervisor owns the lifecycle of the transcode/mux subprocess
// graph: spawning, liveness, teardown, and unbounded crash recovery.
package supervisor

// State is the supervisor's position in its per-run state machine:
//
//	Stopped -> Starting -> Running -> (Crashed | StoppedByRequest | SourceExpired) -> Stopped
type State string

const (
	// StateStopped means no generation is active.
	StateStopped State = "stopped"
	// StateStarting means a generation's subprocesses are being spawned.
	StateStarting State = "starting"
	// StateRunning means a generation is live and being monitored.
	StateRunning State = "running"
	// StateCrashed means the primary subprocess exited unexpectedly.
	StateCrashed State = "crashed"
	// StateSourceExpired means the muxer exited in external-audio mode and
	// the upstream handle is assumed stale.
	StateSourceExpired State = "source_expired"
	// StateStoppedByRequest means an external shutdown or restart request
	// tore the generation down.
	StateStoppedByRequest State = "stopped_by_request"
)

// Role identifies a subprocess's job within the pipeline graph.
type Role string

const (
	// RoleSinglePipeline is one process consuming both plans and producing
	// the output stream.
	RoleSinglePipeline Role = "single-pipeline"
	// RoleVideoLoop is the looping video feeder.
	RoleVideoLoop Role = "video-loop"
	// RoleAudioLoop is the looping audio feeder.
	RoleAudioLoop Role = "audio-loop"
	// RoleMuxer combines the feeder transports into the final output.
	RoleMuxer Role = "muxer"
)
