package backend

import (
	"fmt"
	"time"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/backend.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type BackendConfigMarshall struct {
	Port     int32                    `yaml:"port"`
	Shepherd *ShepherdConfigMarshall  `yaml:"shepherd"`
}

var _ Marshalled[*BackendConfig] = &BackendConfigMarshall{}

func (b *BackendConfigMarshall) trySeal(path string) *BackendConfig {
	return &BackendConfig{
		port:     b.Port,
		shepherd: nonnil(b.Shepherd, path+".shepherd").trySeal(path + ".shepherd"),
	}
}

// Configuration of the Shepherd deployment.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `ShepherdConfig`.
// You can get `ShepherdConfig` instance with `ShepherdConfigMarshall.TrySeal()`
type ShepherdConfigMarshall struct {
	Database       string                   `yaml:"database"`
	SchemaEndpoint string                   `yaml:"schemaEndpoint,omitempty"`
	AdminTokenKey  string                   `yaml:"adminTokenKey"`
	Clusters       []*ClusterConfigMarshall `yaml:"clusters"`
	Worker         *WorkerConfigMarshall    `yaml:"worker"`
}

// verify configuration value and create "readonly" version of this.
//
// IT WILL PANIC if any misconfiguration is found.
func (sm *ShepherdConfigMarshall) TrySeal() *ShepherdConfig {
	return sm.trySeal("(root)")
}

func (sm *ShepherdConfigMarshall) trySeal(path string) *ShepherdConfig {
	if len(sm.Clusters) == 0 {
		panic(path + ".clusters needs at least one cluster")
	}
	clusters := make([]*ClusterConfig, len(sm.Clusters))
	for i, cm := range sm.Clusters {
		clusters[i] = nonnil(cm, fmt.Sprintf("%s.clusters[%d]", path, i)).
			trySeal(fmt.Sprintf("%s.clusters[%d]", path, i))
	}

	return &ShepherdConfig{
		database:       required(sm.Database, path+".database"),
		schemaEndpoint: sm.SchemaEndpoint,
		adminTokenKey:  required(sm.AdminTokenKey, path+".adminTokenKey"),
		clusters:       clusters,
		worker:         nonnil(sm.Worker, path+".worker").trySeal(path + ".worker"),
	}
}

type ClusterConfigMarshall struct {
	Id          string `yaml:"id"`
	Environment string `yaml:"environment"`
	Kubeconfig  string `yaml:"kubeconfig,omitempty"`
	Namespace   string `yaml:"namespace"`
}

func (cm *ClusterConfigMarshall) trySeal(path string) *ClusterConfig {
	environment, err := domain.AsEnvironment(required(cm.Environment, path+".environment"))
	if err != nil {
		panic(fmt.Errorf("%s.environment can not be parsed: %w", path, err))
	}

	return &ClusterConfig{
		id:          required(cm.Id, path+".id"),
		environment: environment,
		kubeconfig:  cm.Kubeconfig,
		namespace:   required(cm.Namespace, path+".namespace"),
	}
}

type WorkerConfigMarshall struct {
	MaxAttempts int    `yaml:"maxAttempts,omitempty"`
	TaskTimeout string `yaml:"taskTimeout,omitempty"`
}

func (wc *WorkerConfigMarshall) trySeal(path string) *WorkerConfig {
	maxAttempts := wc.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}

	taskTimeout := 10 * time.Minute
	if wc.TaskTimeout != "" {
		parsed, err := time.ParseDuration(wc.TaskTimeout)
		if err != nil {
			panic(fmt.Errorf("%s.taskTimeout can not be parsed: %w", path, err))
		}
		taskTimeout = parsed
	}

	return &WorkerConfig{
		maxAttempts: maxAttempts,
		taskTimeout: taskTimeout,
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
