package config

import (
	"fmt"
	"os"
)

// Template returns a starter configuration file.
func Template() string {
	return serverTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serverTemplate), 0o600)
}

const serverTemplate = `[server]
listen_addr = ":42127"
read_timeout = "90s"
write_timeout = "15s"
max_content_bytes = 8388608
max_depth = 64
max_collection_count = 100000

[server.tls]
enabled = false
cert_file = ""
key_file = ""

[admin]
listen_addr = ":9110"
metrics_token = ""

[redirector]
host = "127.0.0.1"
ip = "127.0.0.1"
port = 10041
secure = false

[util.client_config.ME3_DATA]
GAW_SERVER_BASE_URL = "http://127.0.0.1:8080/"

[client]
connect_timeout = "5s"
max_attempts = 5
initial_backoff = "250ms"
max_backoff = "5s"
backoff_multiplier = 2.0

[log]
level = "info"
json = false
`
