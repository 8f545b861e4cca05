package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"postflow/internal/config"
)

const redacted = "[redacted]"

// configView is the printable form of AppConfig. Secrets are masked.
type configView struct {
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	Timezone string `yaml:"timezone"`
	Database struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`
	Storage struct {
		Driver      string `yaml:"driver"`
		UploadDir   string `yaml:"upload_dir"`
		TmpDir      string `yaml:"tmp_dir"`
		MaxBytes    int64  `yaml:"max_bytes"`
		MinIOBucket string `yaml:"minio_bucket,omitempty"`
		MinIOSecret string `yaml:"minio_secret_key,omitempty"`
	} `yaml:"storage"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		TokenTTL   string `yaml:"token_ttl"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	LLM struct {
		Provider    string `yaml:"provider"`
		OpenAIKey   string `yaml:"openai_api_key"`
		OpenAIModel string `yaml:"openai_model"`
		GeminiKey   string `yaml:"gemini_api_key"`
		GeminiModel string `yaml:"gemini_model"`
		Timeout     string `yaml:"timeout"`
		MaxAttempts int    `yaml:"max_attempts"`
		MaxTags     int    `yaml:"max_tags"`
	} `yaml:"llm"`
	SMTP struct {
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		User       string `yaml:"user"`
		Password   string `yaml:"password"`
		From       string `yaml:"from"`
		AdminEmail string `yaml:"admin_email"`
		BaseURL    string `yaml:"base_url"`
	} `yaml:"smtp"`
	HTTP struct {
		CORSOrigins     string `yaml:"cors_origins"`
		RateLimitMax    int    `yaml:"rate_limit_max"`
		RateLimitWindow string `yaml:"rate_limit_window"`
	} `yaml:"http"`
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

func viewOf(c *config.AppConfig) configView {
	var v configView
	v.Env, v.Port, v.Timezone = c.Env, c.Port, c.Timezone

	v.Database.Host = c.Database.Host
	v.Database.Port = c.Database.Port
	v.Database.User = c.Database.User
	v.Database.Password = mask(c.Database.Password)
	v.Database.Name = c.Database.Name
	v.Database.SSLMode = c.Database.SSLMode

	v.Storage.Driver = c.Storage.Driver
	v.Storage.UploadDir = c.Storage.UploadDir
	v.Storage.TmpDir = c.Storage.TmpDir
	v.Storage.MaxBytes = c.Storage.MaxBytes
	if c.Storage.Driver == "minio" {
		v.Storage.MinIOBucket = c.MinIO.Bucket
		v.Storage.MinIOSecret = mask(c.MinIO.SecretKey)
	}

	v.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	v.Auth.TokenTTL = c.Auth.TokenTTL.String()
	v.Auth.BcryptCost = c.Auth.BcryptCost

	v.LLM.Provider = c.LLM.Provider
	v.LLM.OpenAIKey = mask(c.LLM.OpenAIKey)
	v.LLM.OpenAIModel = c.LLM.OpenAIModel
	v.LLM.GeminiKey = mask(c.LLM.GeminiKey)
	v.LLM.GeminiModel = c.LLM.GeminiModel
	v.LLM.Timeout = c.LLM.Timeout.String()
	v.LLM.MaxAttempts = c.LLM.MaxAttempts
	v.LLM.MaxTags = c.LLM.MaxTags

	v.SMTP.Host = c.SMTP.Host
	v.SMTP.Port = c.SMTP.Port
	v.SMTP.User = c.SMTP.User
	v.SMTP.Password = mask(c.SMTP.Password)
	v.SMTP.From = c.SMTP.From
	v.SMTP.AdminEmail = c.SMTP.AdminEmail
	v.SMTP.BaseURL = c.SMTP.BaseURL

	v.HTTP.CORSOrigins = c.HTTP.CORSOrigins
	v.HTTP.RateLimitMax = c.HTTP.RateLimitMax
	v.HTTP.RateLimitWindow = c.HTTP.RateLimitWindow.String()
	return v
}

func newConfigCommand(e *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration loaded from the environment as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(viewOf(e.Config)); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
