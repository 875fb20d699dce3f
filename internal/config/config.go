// Package config loads and validates all run parameters from the
// environment. Validation happens here, before any stage or server starts;
// a bad value never makes it into a running flow.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/railsched/internal/booking"
)

// Error is a configuration error naming the offending variable.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// LoadDotenv pulls a .env file into the environment when one exists.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Booking is everything one booking or verify run needs.
type Booking struct {
	BaseURL  string
	Mobile   string
	Password string

	Request booking.Request

	OTPMaxWait  time.Duration
	Headless    bool
	ArtifactDir string
}

const (
	otpWaitDefault = 420 * time.Second
	otpWaitMin     = 300 * time.Second
	otpWaitMax     = 600 * time.Second
)

// FromEnvBooking reads and validates the booking run configuration.
func FromEnvBooking() (Booking, error) {
	cfg := Booking{
		Headless:    envDefault("HEADLESS", "1") != "0",
		ArtifactDir: strings.TrimSpace(os.Getenv("ARTIFACT_DIR")),
	}

	var err error
	if cfg.BaseURL, err = requireEnv("RAIL_BASE_URL"); err != nil {
		return Booking{}, err
	}
	if cfg.Mobile, err = requireEnv("RAIL_MOBILE"); err != nil {
		return Booking{}, err
	}
	if cfg.Password, err = requireEnv("RAIL_PASSWORD"); err != nil {
		return Booking{}, err
	}
	if cfg.Request.Origin, err = requireEnv("ORIGIN_STATION"); err != nil {
		return Booking{}, err
	}
	if cfg.Request.Destination, err = requireEnv("DESTINATION_STATION"); err != nil {
		return Booking{}, err
	}
	if cfg.Request.TravelDate, err = requireEnv("TRAVEL_DATE"); err != nil {
		return Booking{}, err
	}
	if _, perr := time.Parse(booking.DateLayout, cfg.Request.TravelDate); perr != nil {
		return Booking{}, &Error{Field: "TRAVEL_DATE", Reason: fmt.Sprintf("%q is not DD-MMM-YYYY (e.g. 15-Nov-2026)", cfg.Request.TravelDate)}
	}
	if cfg.Request.TravelClass, err = requireEnv("TRAVEL_CLASS"); err != nil {
		return Booking{}, err
	}
	if cfg.Request.TrainName, err = requireEnv("TRAIN_NAME"); err != nil {
		return Booking{}, err
	}

	seatsRaw, err := requireEnv("NUMBER_OF_SEATS")
	if err != nil {
		return Booking{}, err
	}
	seats, perr := strconv.Atoi(seatsRaw)
	if perr != nil {
		return Booking{}, &Error{Field: "NUMBER_OF_SEATS", Reason: fmt.Sprintf("%q is not an integer", seatsRaw)}
	}
	if seats < 1 {
		return Booking{}, &Error{Field: "NUMBER_OF_SEATS", Reason: fmt.Sprintf("must be a positive integer (got %d)", seats)}
	}
	cfg.Request.SeatCount = seats
	cfg.Request.PreferredSeats = booking.SplitSeats(os.Getenv("PREFERRED_SEATS"))

	cfg.OTPMaxWait = otpWaitDefault
	if raw := strings.TrimSpace(os.Getenv("OTP_MAX_WAIT_SECONDS")); raw != "" {
		sec, perr := strconv.Atoi(raw)
		if perr != nil {
			return Booking{}, &Error{Field: "OTP_MAX_WAIT_SECONDS", Reason: fmt.Sprintf("%q is not an integer", raw)}
		}
		cfg.OTPMaxWait = clampDuration(time.Duration(sec)*time.Second, otpWaitMin, otpWaitMax)
	}

	if err := cfg.Request.Validate(); err != nil {
		return Booking{}, &Error{Field: "booking request", Reason: err.Error()}
	}
	return cfg, nil
}

// Server is the configuration for the web UI + scheduler mode.
type Server struct {
	ListenAddr  string
	BaseURL     string
	DatabaseURL string

	CookieHashKey  []byte
	CookieBlockKey []byte
	CredEncKey     []byte // 32 bytes, AES-256-GCM

	PollInterval time.Duration

	RailBaseURL string
	Headless    bool
	ArtifactDir string
	OTPMaxWait  time.Duration
}

// FromEnvServer reads and validates the server-mode configuration.
func FromEnvServer() (Server, error) {
	cfg := Server{
		ListenAddr:  envDefault("LISTEN_ADDR", ":8080"),
		BaseURL:     envDefault("BASE_URL", "http://localhost:8080"),
		Headless:    envDefault("HEADLESS", "1") != "0",
		ArtifactDir: strings.TrimSpace(os.Getenv("ARTIFACT_DIR")),
		OTPMaxWait:  otpWaitDefault,
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return Server{}, err
	}
	if cfg.RailBaseURL, err = requireEnv("RAIL_BASE_URL"); err != nil {
		return Server{}, err
	}

	pollSec, perr := strconv.Atoi(envDefault("SCHED_POLL_SECONDS", "2"))
	if perr != nil || pollSec < 1 {
		return Server{}, &Error{Field: "SCHED_POLL_SECONDS", Reason: "must be a positive integer"}
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	if cfg.CookieHashKey, err = requireB64("COOKIE_HASH_KEY"); err != nil {
		return Server{}, err
	}
	if cfg.CookieBlockKey, err = requireB64("COOKIE_BLOCK_KEY"); err != nil {
		return Server{}, err
	}
	if cfg.CredEncKey, err = requireB64("CRED_ENC_KEY"); err != nil {
		return Server{}, err
	}
	if len(cfg.CredEncKey) != 32 {
		return Server{}, &Error{Field: "CRED_ENC_KEY", Reason: fmt.Sprintf("must decode to 32 bytes (got %d)", len(cfg.CredEncKey))}
	}
	return cfg, nil
}

func requireEnv(k string) (string, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return "", &Error{Field: k, Reason: "required"}
	}
	return v, nil
}

func requireB64(k string) ([]byte, error) {
	v, err := requireEnv(k)
	if err != nil {
		return nil, err
	}
	if b, derr := base64.StdEncoding.DecodeString(v); derr == nil {
		return b, nil
	}
	b, derr := base64.RawStdEncoding.DecodeString(v)
	if derr != nil {
		return nil, &Error{Field: k, Reason: "not valid base64"}
	}
	return b, nil
}

func envDefault(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
