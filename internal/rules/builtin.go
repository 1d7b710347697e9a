package rules

// NPU channel codes of the built-in rules. These are the IUPAC lab codes
// the Nordic registries use for the analytes involved.
const (
	ChannelNeutrophils = "NPU02902" // B-Neutrophilocytes, ×10⁹/L
	ChannelCRP         = "NPU19748" // P-C-reactive protein, mg/L
	ChannelALAT        = "NPU19651" // P-Alanine transaminase, U/L
	ChannelCoagulation = "NPU01684" // P-Coagulation factors, ratio
	ChannelBilirubin   = "NPU01370" // P-Bilirubin, µmol/L
	ChannelCreatinine  = "NPU18016" // P-Creatinine, µmol/L
	ChannelPlatelets   = "NPU03568" // B-Thrombocytes, ×10⁹/L
	ChannelAmylase     = "NPU19652" // P-Amylase, U/L
	ChannelPancAmylase = "NPU19653" // P-Pancreatic amylase, U/L
	ChannelLipase      = "DNK05451" // P-Lipase, U/L
)

// NewNeutropenia detects a neutrophil count below the cutoff sustained for
// more than the configured number of days.
func NewNeutropenia() Rule {
	return &ThresholdDuration{
		name:    "neutropenia",
		channel: ChannelNeutrophils,
		below:   true,
		paramSet: newParamSet(
			ParamSpec{Name: "cutoff", Unit: "x10^9/L", Min: 0, Max: 10, Default: 0.5},
			ParamSpec{Name: "days", Unit: "days", Min: 0, Max: 30, Default: 10},
		),
		durationParam: "days",
		hoursPerUnit:  24,
	}
}

// NewThrombocytopenia detects a platelet count below the cutoff sustained
// for more than the configured number of hours.
func NewThrombocytopenia() Rule {
	return &ThresholdDuration{
		name:    "thrombocytopenia",
		channel: ChannelPlatelets,
		below:   true,
		paramSet: newParamSet(
			ParamSpec{Name: "cutoff", Unit: "x10^9/L", Min: 0, Max: 50, Default: 10},
			ParamSpec{Name: "hours", Unit: "hours", Min: 24, Max: 120, Default: 72},
		),
		durationParam: "hours",
		hoursPerUnit:  1,
	}
}

// NewSevereInfection detects CRP over an absolute cutoff at any draw, or
// CRP above the patient's own reference value for more than the configured
// number of days.
func NewSevereInfection() Rule {
	return &UnionInstantSustained{
		name:    "severe-infection",
		channel: ChannelCRP,
		paramSet: newParamSet(
			ParamSpec{Name: "cutoff", Unit: "mg/L", Min: 0, Max: 400, Default: 100},
			ParamSpec{Name: "days", Unit: "days", Min: 0, Max: 180, Default: 7},
		),
	}
}

// NewHepaticToxicity detects elevated ALAT together with a depressed
// coagulation factor ratio or elevated bilirubin at the same draw.
func NewHepaticToxicity() Rule {
	return &MultiChannelAnd{
		name:        "hepatic-toxicity",
		leadChannel: ChannelALAT,
		lowChannel:  ChannelCoagulation,
		highChannel: ChannelBilirubin,
		paramSet: newParamSet(
			ParamSpec{Name: "lead_cutoff", Unit: "U/L", Min: 0, Max: 100, Default: 45},
			ParamSpec{Name: "low_cutoff", Unit: "ratio", Min: 0, Max: 1, Default: 0.4},
			ParamSpec{Name: "high_cutoff", Unit: "umol/L", Min: 0, Max: 100, Default: 40},
		),
	}
}

// NewRenalToxicity detects any creatinine reading above the cutoff.
func NewRenalToxicity() Rule {
	return &InstantThreshold{
		name:    "renal-toxicity",
		channel: ChannelCreatinine,
		paramSet: newParamSet(
			ParamSpec{Name: "cutoff", Unit: "umol/L", Min: 0, Max: 1000, Default: 150},
		),
	}
}

// NewPancreatitis detects any pancreatic enzyme above a multiple of its
// normal upper limit, gated by CRP over 100 mg/L at the same draw.
func NewPancreatitis() Rule {
	return &MultiChannelOrGate{
		name: "pancreatitis",
		normalLimits: map[string]float64{
			ChannelAmylase:     120,
			ChannelPancAmylase: 36,
			ChannelLipase:      190,
		},
		gateChannel: ChannelCRP,
		gateCutoff:  100,
		paramSet: newParamSet(
			ParamSpec{Name: "multiplier", Unit: "x normal", Min: 1, Max: 6, Default: 3},
		),
	}
}

// Builtin returns a fresh instance of every built-in rule, each at its
// default parameters.
func Builtin() []Rule {
	return []Rule{
		NewNeutropenia(),
		NewSevereInfection(),
		NewHepaticToxicity(),
		NewRenalToxicity(),
		NewThrombocytopenia(),
		NewPancreatitis(),
	}
}
