package backend

import (
	"time"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

type BackendConfig struct {
	port     int32
	shepherd *ShepherdConfig
}

func (c *BackendConfig) Port() int32 {
	return c.port
}

func (c *BackendConfig) Shepherd() *ShepherdConfig {
	return c.shepherd
}

// Configuration for the Shepherd deployment.
//
// to get `ShepherdConfig` instance, use `ShepherdConfigMarshall.TrySeal()` .
type ShepherdConfig struct {
	database       string
	schemaEndpoint string
	adminTokenKey  string
	clusters       []*ClusterConfig
	worker         *WorkerConfig
}

// Connection string for database.
func (s *ShepherdConfig) Database() string {
	return s.database
}

// Base URL serving schema documents, one per platform minor version.
// Empty = embedded schemas only.
func (s *ShepherdConfig) SchemaEndpoint() string {
	return s.schemaEndpoint
}

// HMAC key verifying admin identity tokens.
func (s *ShepherdConfig) AdminTokenKey() string {
	return s.adminTokenKey
}

// Target clusters work records can be executed on.
func (s *ShepherdConfig) Clusters() []*ClusterConfig {
	return s.clusters
}

// Configration for job execution.
func (s *ShepherdConfig) Worker() *WorkerConfig {
	return s.worker
}

// One target cluster.
type ClusterConfig struct {
	id          string
	environment domain.Environment
	kubeconfig  string
	namespace   string
}

func (c *ClusterConfig) Id() string {
	return c.id
}

// Hand-assigned environment class. Never auto-detected: which clusters are
// production is an operator's statement, not a discovered fact.
func (c *ClusterConfig) Environment() domain.Environment {
	return c.environment
}

// Path to the kubeconfig reaching this cluster. Empty = in-cluster config.
func (c *ClusterConfig) Kubeconfig() string {
	return c.kubeconfig
}

// k8s namespace where VMs are deploied.
func (c *ClusterConfig) Namespace() string {
	return c.namespace
}

type WorkerConfig struct {
	maxAttempts int
	taskTimeout time.Duration
}

// How many times a job is attempted before giving up.
func (wc *WorkerConfig) MaxAttempts() int {
	return wc.maxAttempts
}

// Timeout for a single call to the target cluster.
func (wc *WorkerConfig) TaskTimeout() time.Duration {
	return wc.taskTimeout
}
