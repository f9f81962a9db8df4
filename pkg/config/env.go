package config

const (
	EnvPrefix = "TECH4LOOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "TECH4LOOP_APP_ENV"
	EnvPort                = "TECH4LOOP_APP_PORT"
	EnvPublicBaseURL       = "TECH4LOOP_PUBLIC_BASE_URL"
	EnvDBDSN               = "TECH4LOOP_DB_DSN"
	EnvDBHost              = "TECH4LOOP_DB_HOST"
	EnvDBUser              = "TECH4LOOP_DB_USER"
	EnvDBName              = "TECH4LOOP_DB_NAME"
	EnvRedisURL            = "TECH4LOOP_REDIS_URL"
	EnvJWTSecret           = "TECH4LOOP_JWT_SECRET"
	EnvJWTIssuer           = "TECH4LOOP_JWT_ISSUER"
	EnvGatewayToken        = "TECH4LOOP_GATEWAY_ACCESS_TOKEN"
	EnvGatewayEnv          = "TECH4LOOP_GATEWAY_ENV"
	EnvWebhookSecret       = "TECH4LOOP_WEBHOOK_SECRET_TOKEN"
	EnvCheckoutHoldTTL     = "TECH4LOOP_CHECKOUT_HOLD_TTL"
	EnvCheckoutDeferredTTL = "TECH4LOOP_CHECKOUT_DEFERRED_HOLD_TTL"
	EnvCheckoutSuccess     = "TECH4LOOP_CHECKOUT_SUCCESS_URL"
	EnvCheckoutFailure     = "TECH4LOOP_CHECKOUT_FAILURE_URL"
	EnvStorageBucket       = "TECH4LOOP_STORAGE_BUCKET"
	EnvGCPProjectID        = "TECH4LOOP_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic   = "TECH4LOOP_PUBSUB_ORDERS_TOPIC"
	EnvBigQueryDataset     = "TECH4LOOP_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
