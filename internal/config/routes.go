package config

type RoutesConfig struct {
	// Source is "builtin", a local path, s3://bucket/key or gs://bucket/key.
	Source             string `yaml:"source"`
	AWSRegion          string `yaml:"aws_region"`
	GCPCredentialsFile string `yaml:"gcp_credentials_file"`
}

func loadRoutesConfig() *RoutesConfig {
	return &RoutesConfig{
		Source:             getEnv("ROUTES_SOURCE", "builtin"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		GCPCredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
	}
}
