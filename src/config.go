package dmrgps

/*------------------------------------------------------------------
 *
 * Purpose:   	Read the configuration file.
 *
 * Description:	YAML, for example
 *
 *		data_id: 9099
 *		call_type: unit
 *		aprs:
 *		    login: N0CALL
 *		    passcode: "13023"
 *		    server: rotate.aprs2.net
 *		report:
 *		    ssid: "15"
 *		    comment: Sent from DMR
 *		commands:
 *		    REBOOT: sudo reboot
 *
 *		Anything left out gets the value from DefaultConfig.
 *		Unknown keys are an error so typos don't go unnoticed.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type APRSConfig struct {
	Login    string        `yaml:"login"`
	Passcode string        `yaml:"passcode"`
	Server   string        `yaml:"server"`
	Port     int           `yaml:"port"`
	ToCall   string        `yaml:"tocall"`
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ReportSettings struct {
	SSID        string `yaml:"ssid"`
	Comment     string `yaml:"comment"`
	SymbolTable string `yaml:"symbol_table"`
	Symbol      string `yaml:"symbol"`
}

type Config struct {
	DataID          uint32            `yaml:"data_id"`
	CallType        string            `yaml:"call_type"`
	APRS            APRSConfig        `yaml:"aprs"`
	Report          ReportSettings    `yaml:"report"`
	Profiles        string            `yaml:"profiles"`
	LegacyProfiles  string            `yaml:"legacy_profiles"`
	Subscribers     string            `yaml:"subscribers"`
	AssemblyTimeout time.Duration     `yaml:"assembly_timeout"`
	Listen          string            `yaml:"listen"`
	Metrics         string            `yaml:"metrics"`
	DNSSDName       string            `yaml:"dns_sd_name"`
	Commands        map[string]string `yaml:"commands"`
	ActionTimeout   time.Duration     `yaml:"action_timeout"`
	LogLevel        string            `yaml:"log_level"`
	QueueSize       int               `yaml:"queue_size"`
}

func DefaultConfig() Config {
	return Config{
		CallType: "unit",
		APRS: APRSConfig{
			Server:  "rotate.aprs2.net",
			Port:    DEFAULT_IGATE_PORT,
			ToCall:  "APHBL3",
			Path:    "TCPIP*",
			Timeout: DEFAULT_IGATE_TIMEOUT,
		},
		Report: ReportSettings{
			SSID:        "15",
			Comment:     "Sent from DMR",
			SymbolTable: "/",
			Symbol:      "[",
		},
		Profiles:        "user_settings.yaml",
		AssemblyTimeout: 30 * time.Second,
		Listen:          "127.0.0.1:62044",
		Metrics:         ":9464",
		ActionTimeout:   DEFAULT_ACTION_TIMEOUT,
		LogLevel:        "info",
		QueueSize:       DEFAULT_QUEUE_SIZE,
	}
}

// LoadConfig reads a configuration file over the defaults and checks it.
func LoadConfig(path string) (Config, error) {
	var cfg = DefaultConfig()

	var data, err = os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var decoder = yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports everything wrong with the configuration, not just the first thing.
func (c Config) Validate() error {
	var errs []error

	if c.DataID == 0 {
		errs = append(errs, errors.New("data_id is required"))
	}

	if _, err := ParseCallType(c.CallType); err != nil || c.CallType == "vcsbk" {
		errs = append(errs, fmt.Errorf("call_type %q must be group or unit", c.CallType))
	}

	if !sourceCallRE.MatchString(c.APRS.Login) {
		errs = append(errs, fmt.Errorf("aprs.login %q is not a callsign", c.APRS.Login))
	}

	if n, err := strconv.Atoi(c.APRS.Passcode); err != nil || n < -1 || n > 0x7fff {
		errs = append(errs, fmt.Errorf("aprs.passcode %q must be a number up to 32767, or -1", c.APRS.Passcode))
	}

	if c.APRS.Server == "" {
		errs = append(errs, errors.New("aprs.server is required"))
	}

	if c.APRS.Port < 1 || c.APRS.Port > 65535 {
		errs = append(errs, fmt.Errorf("aprs.port %d out of range", c.APRS.Port))
	}

	if !destCallRE.MatchString(c.APRS.ToCall) {
		errs = append(errs, fmt.Errorf("aprs.tocall %q is not valid", c.APRS.ToCall))
	}

	if !pathCallRE.MatchString(c.APRS.Path) {
		errs = append(errs, fmt.Errorf("aprs.path %q is not valid", c.APRS.Path))
	}

	if !ssidRE.MatchString(c.Report.SSID) {
		errs = append(errs, fmt.Errorf("report.ssid %q must be 1 or 2 letters or digits", c.Report.SSID))
	}

	if len(c.Report.SymbolTable) != 1 || !validSymbolTable(c.Report.SymbolTable[0]) {
		errs = append(errs, fmt.Errorf("report.symbol_table %q must be /, \\, or an overlay character", c.Report.SymbolTable))
	}

	if len(c.Report.Symbol) != 1 || c.Report.Symbol[0] < '!' || c.Report.Symbol[0] > '~' {
		errs = append(errs, fmt.Errorf("report.symbol %q must be one printable character", c.Report.Symbol))
	}

	if c.Profiles == "" {
		errs = append(errs, errors.New("profiles file is required"))
	}

	if c.AssemblyTimeout < 0 {
		errs = append(errs, fmt.Errorf("assembly_timeout %s is negative", c.AssemblyTimeout))
	}

	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("queue_size %d is negative", c.QueueSize))
	}

	return errors.Join(errs...)
}

func (c Config) AssemblerConfig() AssemblerConfig {
	var ct, _ = ParseCallType(c.CallType)

	return AssemblerConfig{
		DataID:   c.DataID,
		CallType: ct,
		Timeout:  c.AssemblyTimeout,
	}
}

func (c Config) ReportConfig() ReportConfig {
	var rc = ReportConfig{
		ToCall:      c.APRS.ToCall,
		Path:        c.APRS.Path,
		SSID:        c.Report.SSID,
		Comment:     c.Report.Comment,
		SymbolTable: '/',
		Symbol:      '[',
	}

	if len(c.Report.SymbolTable) == 1 {
		rc.SymbolTable = c.Report.SymbolTable[0]
	}
	if len(c.Report.Symbol) == 1 {
		rc.Symbol = c.Report.Symbol[0]
	}

	return rc
}

func (c Config) IGateConfig() IGateConfig {
	return IGateConfig{
		Server:   c.APRS.Server,
		Port:     c.APRS.Port,
		Login:    c.APRS.Login,
		Passcode: c.APRS.Passcode,
		Timeout:  c.APRS.Timeout,
	}
}

func (c Config) ProfileStoreConfig() ProfileStoreConfig {
	return ProfileStoreConfig{Path: c.Profiles, LegacyPath: c.LegacyProfiles}
}

func (c Config) CommandConfig() CommandConfig {
	return CommandConfig{Commands: c.Commands}
}
