package ui

import (
	"github.com/heirakug/video-to-audio-converter/internal/convert"
	"github.com/heirakug/video-to-audio-converter/internal/engine"
)

// Messages for the Bubble Tea command pattern. The engine loader and
// the conversion orchestrator run outside the program loop and feed it
// through Program.Send.

// EngineStateMsg reports a loader state transition.
type EngineStateMsg struct {
	State engine.State
}

// DownloadProgressMsg reports bytes received for one engine artifact.
type DownloadProgressMsg struct {
	Name     string
	Received int64
	Total    int64 // 0 when the server does not declare a length
}

// ConvertStatusMsg reports the conversion entering a new stage.
type ConvertStatusMsg struct {
	Status convert.Status
}

// ConvertProgressMsg reports extraction progress.
type ConvertProgressMsg struct {
	Percent int
}

// ConvertWarningMsg carries a non-fatal warning to display.
type ConvertWarningMsg struct {
	Text string
}

// ConvertDoneMsg ends the program: the conversion finished or failed.
type ConvertDoneMsg struct {
	OutputPath string
	Err        error
}
