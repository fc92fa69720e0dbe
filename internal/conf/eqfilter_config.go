package conf

// EqFilterConfig describes the parameter schema for each biquad filter type,
// served by the command surface so a UI can build filter-editing forms
// without hardcoding parameter ranges.
var EqFilterConfig = map[string]EqFilterTypeConfig{
	"LowPass": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Cutoff Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 15000, Tooltip: "Cutoff frequency above which the signal is attenuated"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 0.707, Tooltip: "Quality factor that determines the sharpness of the filter's response"},
			{Name: "Passes", Label: "Passes", Type: "number", Min: 1, Max: 4, Default: 1, Tooltip: "Number of times the filter is cascaded for steeper rolloff"},
		},
		Tooltip: "Low-pass filter attenuates frequencies above the cutoff frequency.",
	},
	"HighPass": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Cutoff Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 100, Tooltip: "Cutoff frequency below which the signal is attenuated"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 0.707, Tooltip: "Quality factor that determines the sharpness of the filter's response"},
			{Name: "Passes", Label: "Passes", Type: "number", Min: 1, Max: 4, Default: 1, Tooltip: "Number of times the filter is cascaded for steeper rolloff"},
		},
		Tooltip: "High-pass filter attenuates frequencies below the cutoff frequency.",
	},
	"BandPass": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Center Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 1000, Tooltip: "Center frequency of the pass band"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 0.707, Tooltip: "Quality factor that determines the width of the pass band"},
			{Name: "Passes", Label: "Passes", Type: "number", Min: 1, Max: 4, Default: 1, Tooltip: "Number of times the filter is cascaded"},
		},
		Tooltip: "Band-pass filter allows a range of frequencies to pass while attenuating others.",
	},
	"Notch": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Center Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 60, Tooltip: "Center frequency of the rejected band"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 30, Default: 10, Tooltip: "Quality factor; higher values narrow the rejected band"},
			{Name: "Passes", Label: "Passes", Type: "number", Min: 1, Max: 4, Default: 1, Tooltip: "Number of times the filter is cascaded"},
		},
		Tooltip: "Notch filter attenuates a narrow band of frequencies, e.g. to remove mains hum.",
	},
	"LowShelf": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Transition Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 200, Tooltip: "Transition frequency of the shelf filter"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 0.707, Tooltip: "Quality factor that determines the transition slope"},
			{Name: "Gain", Label: "Gain", Type: "number", Unit: "dB", Min: -30, Max: 30, Default: 0, Tooltip: "Amount of boost or cut applied to frequencies below the transition frequency"},
		},
		Tooltip: "Low-shelf filter boosts or cuts frequencies below the transition frequency.",
	},
	"HighShelf": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Transition Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 8000, Tooltip: "Transition frequency of the shelf filter"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 0.707, Tooltip: "Quality factor that determines the transition slope"},
			{Name: "Gain", Label: "Gain", Type: "number", Unit: "dB", Min: -30, Max: 30, Default: 0, Tooltip: "Amount of boost or cut applied to frequencies above the transition frequency"},
		},
		Tooltip: "High-shelf filter boosts or cuts frequencies above the transition frequency.",
	},
	"Peaking": {
		Parameters: []EqFilterParameter{
			{Name: "Frequency", Label: "Center Frequency", Type: "number", Unit: "Hz", Min: 20, Max: 20000, Default: 1000, Tooltip: "Center frequency of the peak or dip"},
			{Name: "Q", Label: "Q Factor", Type: "number", Min: 0.1, Max: 10, Default: 1, Tooltip: "Quality factor that determines the width of the peak or dip"},
			{Name: "Gain", Label: "Gain", Type: "number", Unit: "dB", Min: -30, Max: 30, Default: 0, Tooltip: "Amount of boost or cut applied around the center frequency"},
		},
		Tooltip: "Peaking filter boosts or cuts a range of frequencies around a center point.",
	},
}

// EqFilterTypeConfig defines the configuration for a specific filter type
type EqFilterTypeConfig struct {
	Parameters []EqFilterParameter
	Tooltip    string
}

// EqFilterParameter defines a single parameter for a filter
type EqFilterParameter struct {
	Name    string
	Label   string
	Type    string
	Unit    string
	Min     float64
	Max     float64
	Default float64
	Tooltip string
}
