package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	Twilio     TwilioConfig
	Ledger     LedgerConfig
	Compliance ComplianceConfig
	Session    SessionConfig
	Redis      RedisConfig
	LLM        LLMConfig
	Speech     SpeechConfig
	Auth       AuthConfig
}

type AppConfig struct {
	Env  string
	Port int

	// LogFile optionally tees structured logs to a file.
	LogFile string

	// PublicBaseURL is the externally reachable base for carrier webhooks,
	// e.g. https://dialer.example.com. No trailing slash.
	PublicBaseURL string
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

type LedgerConfig struct {
	// Backend selects the contact store: csv or postgres.
	Backend string

	CSVPath string
	DSN     string
}

type ComplianceConfig struct {
	DNCFilePath string

	CallingHoursStart int
	CallingHoursEnd   int
	Timezone          string
}

type SessionConfig struct {
	MaxConcurrentCalls  int
	ConversationTimeout time.Duration
	PromptsDir          string
}

type RedisConfig struct {
	// Addr is optional; when set it enables the Redis DNC source and the
	// cross-process call cap.
	Addr string
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type SpeechConfig struct {
	STTServerURL string
	TTSLanguage  string
	TTSVoice     string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

const (
	defaultPort              = 8080
	defaultCSVPath           = "contacts.csv"
	defaultDNCPath           = "dnc_list.txt"
	defaultPromptsDir        = "prompts"
	defaultMaxConcurrent     = 3
	defaultCallingHoursStart = 9
	defaultCallingHoursEnd   = 17
	defaultTimezone          = "US/Eastern"
	defaultConversationSecs  = 120
	defaultTTSLanguage       = "en-US"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := optInt("APP_PORT", defaultPort)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.LogFile = strings.TrimSpace(os.Getenv("LOG_FILE"))
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))

	c.Ledger.Backend = strings.TrimSpace(os.Getenv("LEDGER_BACKEND"))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = "csv"
	}
	c.Ledger.CSVPath = strings.TrimSpace(os.Getenv("CSV_FILE_PATH"))
	if c.Ledger.CSVPath == "" {
		c.Ledger.CSVPath = defaultCSVPath
	}
	c.Ledger.DSN = os.Getenv("LEDGER_DSN")

	c.Compliance.DNCFilePath = strings.TrimSpace(os.Getenv("DNC_FILE_PATH"))
	if c.Compliance.DNCFilePath == "" {
		c.Compliance.DNCFilePath = defaultDNCPath
	}
	{
		n, err := optInt("CALLING_HOURS_START", defaultCallingHoursStart)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Compliance.CallingHoursStart = n
	}
	{
		n, err := optInt("CALLING_HOURS_END", defaultCallingHoursEnd)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Compliance.CallingHoursEnd = n
	}
	c.Compliance.Timezone = strings.TrimSpace(os.Getenv("TIMEZONE"))
	if c.Compliance.Timezone == "" {
		c.Compliance.Timezone = defaultTimezone
	}

	{
		n, err := optInt("MAX_CONCURRENT_CALLS", defaultMaxConcurrent)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Session.MaxConcurrentCalls = n
	}
	{
		n, err := optInt("CONVERSATION_TIMEOUT", defaultConversationSecs)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Session.ConversationTimeout = time.Duration(n) * time.Second
	}
	c.Session.PromptsDir = strings.TrimSpace(os.Getenv("PROMPTS_DIR"))
	if c.Session.PromptsDir == "" {
		c.Session.PromptsDir = defaultPromptsDir
	}

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))

	c.LLM.BaseURL = strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	c.LLM.APIKey = os.Getenv("LLM_API_KEY")
	c.LLM.Model = strings.TrimSpace(os.Getenv("LLM_MODEL"))

	c.Speech.STTServerURL = strings.TrimSpace(os.Getenv("STT_SERVER_URL"))
	c.Speech.TTSLanguage = strings.TrimSpace(os.Getenv("TTS_LANGUAGE"))
	if c.Speech.TTSLanguage == "" {
		c.Speech.TTSLanguage = defaultTTSLanguage
	}
	c.Speech.TTSVoice = strings.TrimSpace(os.Getenv("TTS_VOICE"))

	c.Auth.JWTSecret = os.Getenv("ADMIN_JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("ADMIN_JWT_ISSUER"))
	if c.Auth.JWTIssuer == "" {
		c.Auth.JWTIssuer = "coldcall-platform"
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	// Every webhook callback URL is built from this base; without it the
	// carrier can never reach the call-control endpoints and every dial
	// fails with an opaque provider error.
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if !strings.HasPrefix(c.App.PublicBaseURL, "http://") && !strings.HasPrefix(c.App.PublicBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL, got %q", c.App.PublicBaseURL))
	}

	// Carrier credentials are non-negotiable; the dialer cannot place a
	// single call without them.
	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required"))
	}

	switch c.Ledger.Backend {
	case "csv":
	case "postgres":
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			errs = append(errs, errors.New("LEDGER_DSN is required when LEDGER_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND must be csv or postgres, got %q", c.Ledger.Backend))
	}

	if c.Compliance.CallingHoursStart < 0 || c.Compliance.CallingHoursStart > 23 {
		errs = append(errs, fmt.Errorf("CALLING_HOURS_START must be 0-23, got %d", c.Compliance.CallingHoursStart))
	}
	if c.Compliance.CallingHoursEnd < 0 || c.Compliance.CallingHoursEnd > 23 {
		errs = append(errs, fmt.Errorf("CALLING_HOURS_END must be 0-23, got %d", c.Compliance.CallingHoursEnd))
	}
	if c.Compliance.CallingHoursStart >= c.Compliance.CallingHoursEnd {
		errs = append(errs, fmt.Errorf("CALLING_HOURS_START (%d) must be before CALLING_HOURS_END (%d)",
			c.Compliance.CallingHoursStart, c.Compliance.CallingHoursEnd))
	}

	if c.Session.MaxConcurrentCalls <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS must be > 0, got %d", c.Session.MaxConcurrentCalls))
	}
	if c.Session.ConversationTimeout <= 0 {
		errs = append(errs, errors.New("CONVERSATION_TIMEOUT must be > 0"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("ADMIN_JWT_SECRET is required"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func optInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
