package config

import "fmt"

// VectorDBType identifies the vector-store provider.
type VectorDBType string

const (
	VectorDBMilvus   VectorDBType = "milvus"
	VectorDBQdrant   VectorDBType = "qdrant"
	VectorDBChromem  VectorDBType = "chromem"
	VectorDBPinecone VectorDBType = "pinecone"
)

// DatabaseConfig holds configuration for one vector-store connection.
// Supports Milvus (HTTP), Qdrant (gRPC), Chromem (embedded), and Pinecone.
type DatabaseConfig struct {
	// Type selects the provider (milvus, qdrant, chromem, pinecone).
	Type VectorDBType `yaml:"type"`

	// Host of the server (milvus, qdrant).
	Host string `yaml:"host,omitempty"`

	// Port of the server (milvus, qdrant).
	Port int `yaml:"port,omitempty"`

	// Database name within the server (milvus).
	Database string `yaml:"database,omitempty"`

	// APIKey or token for authentication (milvus token, qdrant api-key,
	// pinecone api-key).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS for the connection (qdrant).
	UseTLS bool `yaml:"use_tls,omitempty"`

	// Path is the persistence directory (chromem). Empty keeps the store
	// in memory.
	Path string `yaml:"path,omitempty"`

	// IndexHost is the index endpoint (pinecone).
	IndexHost string `yaml:"index_host,omitempty"`
}

// SetDefaults applies default values.
func (c *DatabaseConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = VectorDBMilvus
	}

	if c.Port == 0 {
		switch c.Type {
		case VectorDBMilvus:
			c.Port = 19530
		case VectorDBQdrant:
			c.Port = 6334
		}
	}

	if c.Host == "" {
		switch c.Type {
		case VectorDBMilvus, VectorDBQdrant:
			c.Host = "localhost"
		}
	}

	if c.Type == VectorDBMilvus && c.Database == "" {
		c.Database = "default"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Type {
	case VectorDBMilvus, VectorDBQdrant, VectorDBChromem, VectorDBPinecone:
	default:
		return fmt.Errorf("invalid type %q (valid: milvus, qdrant, chromem, pinecone)", c.Type)
	}

	switch c.Type {
	case VectorDBMilvus, VectorDBQdrant:
		if c.Host == "" {
			return fmt.Errorf("host is required for %s", c.Type)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535 for %s", c.Type)
		}
	case VectorDBPinecone:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for pinecone")
		}
		if c.IndexHost == "" {
			return fmt.Errorf("index_host is required for pinecone")
		}
	}

	return nil
}

// BaseURL returns the HTTP endpoint for providers spoken to over HTTP.
func (c *DatabaseConfig) BaseURL() string {
	if c.Type == VectorDBMilvus {
		return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
	return ""
}
