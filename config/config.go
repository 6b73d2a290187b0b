package config

type AppConfig struct {
	APIPort     string `env:"PORT" envDefault:"12333"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILGATE_POSTGRES_HOST,required"`
	Port            string `env:"MAILGATE_POSTGRES_PORT,required"`
	User            string `env:"MAILGATE_POSTGRES_USER,required"`
	DBName          string `env:"MAILGATE_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILGATE_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILGATE_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILGATE_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILGATE_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILGATE_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILGATE_POSTGRES_SSL_MODE" envDefault:"require"`
}

type StorageConfig struct {
	AWSRegion             string `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKeyID           string `env:"AWS_ACCESS_KEY_ID"`
	AccessKeySecret       string `env:"AWS_ACCESS_KEY_SECRET"`
	EmailAttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"email-attachments"`
}

type WorkflowEngineConfig struct {
	Url    string `env:"WORKFLOW_ENGINE_URL,required"`
	ApiKey string `env:"WORKFLOW_ENGINE_API_KEY"`
}

type TaskServiceConfig struct {
	Url    string `env:"TASK_SERVICE_URL,required"`
	ApiKey string `env:"TASK_SERVICE_API_KEY"`
}

type IngestionConfig struct {
	// MaxMessages caps unread messages fetched per account per poll.
	MaxMessages int `env:"INGESTION_MAX_MESSAGES" envDefault:"50"`
	// AccountPollTimeoutSeconds bounds one account's full poll run.
	AccountPollTimeoutSeconds int `env:"INGESTION_ACCOUNT_POLL_TIMEOUT_SECONDS" envDefault:"300"`
	// MaxEmailSizeBytes is the policy ceiling for one email including
	// attachments. 0 falls back to the built-in 10 MiB default.
	MaxEmailSizeBytes int64 `env:"INGESTION_MAX_EMAIL_SIZE_BYTES"`
	// AllowedMimeTypes is the attachment allow-list. Empty allows all.
	AllowedMimeTypes []string `env:"INGESTION_ALLOWED_MIME_TYPES" envSeparator:","`
	// CredentialEncryptionKey is the base64 AES-256 key for mailbox
	// passwords at rest.
	CredentialEncryptionKey string `env:"CREDENTIAL_ENCRYPTION_KEY,required"`
	// PollSchedule is the cron expression driving scheduled polls.
	PollSchedule string `env:"CRON_SCHEDULE_MAILBOX_POLL" envDefault:"*/2 * * * *"`
}
