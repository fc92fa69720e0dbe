package project

// GridLine is one bar/beat marker on the timeline, in seconds.
type GridLine struct {
	TimeSeconds float64
	Bar         int
	Beat        int // 0 for a bar line, 1..n for a beat within the bar
}

// Bars returns the grid lines between startSec and endSec at the given
// resolution ("bar" or "beat"), computed from the project's BPM and time
// signature. This is the helper behind the command surface's
// get_grid_lines operation.
func (p *Project) Bars(startSec, endSec float64, resolution string) []GridLine {
	if p.BPM <= 0 || endSec <= startSec {
		return nil
	}

	beatsPerBar := p.TimeSigNum
	if beatsPerBar <= 0 {
		beatsPerBar = 4
	}
	secondsPerBeat := 60.0 / p.BPM

	var step float64
	switch resolution {
	case "beat":
		step = secondsPerBeat
	default: // "bar"
		step = secondsPerBeat * float64(beatsPerBar)
	}
	if step <= 0 {
		return nil
	}

	var lines []GridLine
	beatIndex := int(startSec / secondsPerBeat)
	if beatIndex < 0 {
		beatIndex = 0
	}
	for t := float64(beatIndex) * secondsPerBeat; t < endSec; t += step {
		if t < startSec {
			continue
		}
		totalBeats := int(t/secondsPerBeat + 0.5)
		bar := totalBeats / beatsPerBar
		beat := totalBeats % beatsPerBar

		line := GridLine{TimeSeconds: t, Bar: bar}
		if resolution == "beat" {
			line.Beat = beat
		}
		lines = append(lines, line)
	}
	return lines
}
