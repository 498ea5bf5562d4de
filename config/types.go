package config

// Log controls the structured logging output.
type Log struct {
	Environment string `toml:"Environment"`
	FilePath    string `toml:"FilePath"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
	Compress    bool   `toml:"Compress"`
}

// Telemetry controls the optional OpenTelemetry exporters.
type Telemetry struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Protocol carries the governance-tunable parameters seeded at genesis.
// Amounts are decimal strings so arbitrarily large wei values survive TOML.
type Protocol struct {
	BaseToken   string `toml:"BaseToken"`
	WasabiToken string `toml:"WasabiToken"`
	AdapterID   string `toml:"AdapterID"`

	Governance   string `toml:"Governance"`
	Rewards      string `toml:"Rewards"`
	FeeCollector string `toml:"FeeCollector"`
	Collector    string `toml:"Collector"`

	CollateralizationLimit string `toml:"CollateralizationLimit"`
	MintFeeBps             uint64 `toml:"MintFeeBps"`
	WithdrawFeeBps         uint64 `toml:"WithdrawFeeBps"`
	HarvestFeeBps          uint64 `toml:"HarvestFeeBps"`
	FlushActivator         string `toml:"FlushActivator"`
	WaTokenCeiling         string `toml:"WaTokenCeiling"`

	TransmutationPeriod uint64 `toml:"TransmutationPeriod"`
	PlantableThreshold  string `toml:"PlantableThreshold"`
	PlantableMarginBps  uint64 `toml:"PlantableMarginBps"`

	WasabiRatePerBlock string   `toml:"WasabiRatePerBlock"`
	RewardTokens       []string `toml:"RewardTokens"`
	RewardVesting      []bool   `toml:"RewardVesting"`
}
