package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cloudpasture/shepherd/pkg/domain"
	xe "github.com/cloudpasture/shepherd/pkg/errors"
)

// VMOrder carries everything an execution needs, already decided.
//
// Config is the effective configuration as JSON. SizeSnapshot is the frozen
// size definition taken at approval; hardware numbers come from there, never
// from the live instance_size table.
type VMOrder struct {
	Name         string
	Namespace    string
	Config       []byte
	SizeSnapshot []byte
	StorageClass string
}

// Executor applies one approved work record to its target cluster.
type Executor interface {
	Execute(ctx context.Context, op domain.RecordType, order VMOrder) error
}

type executor struct {
	cluster Cluster
}

var _ Executor = &executor{}

func NewExecutor(cl Cluster) Executor {
	return &executor{cluster: cl}
}

func (e *executor) Execute(ctx context.Context, op domain.RecordType, order VMOrder) error {
	switch op {
	case domain.VMCreate:
		vm, err := buildVM(order)
		if err != nil {
			return err
		}
		if _, err := e.cluster.CreateVM(ctx, order.Namespace, vm); err != nil {
			return xe.Wrap(err)
		}
		return nil

	case domain.VMModify:
		current, err := e.cluster.GetVM(ctx, order.Namespace, order.Name)
		if err != nil {
			return asDomainErr(err)
		}
		vm, err := buildVM(order)
		if err != nil {
			return err
		}
		vm.SetResourceVersion(current.GetResourceVersion())
		if _, err := e.cluster.UpdateVM(ctx, order.Namespace, vm); err != nil {
			return xe.Wrap(err)
		}
		return nil

	case domain.VMDelete:
		if err := e.cluster.DeleteVM(ctx, order.Namespace, order.Name); err != nil {
			if kubeerr.IsNotFound(err) {
				// already gone. delete is idempotent.
				return nil
			}
			return xe.Wrap(err)
		}
		return nil

	case domain.VMStart:
		return e.setRunning(ctx, order, true)

	case domain.VMStop:
		return e.setRunning(ctx, order, false)

	case domain.VMRestart:
		err := e.cluster.DeleteVMInstance(ctx, order.Namespace, order.Name)
		return asDomainErr(err)

	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

func (e *executor) setRunning(ctx context.Context, order VMOrder, running bool) error {
	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{"running": running},
	})
	if err != nil {
		return err
	}
	_, err = e.cluster.PatchVM(ctx, order.Namespace, order.Name, patch)
	return asDomainErr(err)
}

func asDomainErr(err error) error {
	if err == nil {
		return nil
	}
	if kubeerr.IsNotFound(err) {
		return fmt.Errorf("%w: %s", domain.ErrMissing, err)
	}
	return xe.Wrap(err)
}

// buildVM renders the KubeVirt manifest from the order.
func buildVM(order VMOrder) (*unstructured.Unstructured, error) {
	var config map[string]interface{}
	if 0 < len(order.Config) {
		if err := json.Unmarshal(order.Config, &config); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	var size struct {
		CPUCores        int    `json:"cpu_cores"`
		MemoryMB        int    `json:"memory_mb"`
		DiskGB          int    `json:"disk_gb"`
		CPURequest      int    `json:"cpu_request"`
		MemoryRequestMB int    `json:"memory_request_mb"`
		DedicatedCPU    bool   `json:"dedicated_cpu"`
		HugepageSize    string `json:"hugepage_size"`
	}
	if 0 < len(order.SizeSnapshot) {
		if err := json.Unmarshal(order.SizeSnapshot, &size); err != nil {
			return nil, xe.Wrap(err)
		}
	}

	cpuRequest := size.CPURequest
	if cpuRequest == 0 {
		cpuRequest = size.CPUCores
	}
	memoryRequest := size.MemoryRequestMB
	if memoryRequest == 0 {
		memoryRequest = size.MemoryMB
	}

	domainSpec := map[string]interface{}{
		"cpu": map[string]interface{}{
			"cores":                 int64(size.CPUCores),
			"dedicatedCpuPlacement": size.DedicatedCPU,
		},
		"resources": map[string]interface{}{
			"requests": map[string]interface{}{
				"cpu":    fmt.Sprintf("%d", cpuRequest),
				"memory": fmt.Sprintf("%dMi", memoryRequest),
			},
			"limits": map[string]interface{}{
				"cpu":    fmt.Sprintf("%d", size.CPUCores),
				"memory": fmt.Sprintf("%dMi", size.MemoryMB),
			},
		},
	}
	if size.HugepageSize != "" {
		domainSpec["memory"] = map[string]interface{}{
			"hugepages": map[string]interface{}{"pageSize": size.HugepageSize},
		}
	}

	templateSpec := map[string]interface{}{"domain": domainSpec}
	if devices, ok := config["devices"]; ok {
		domainSpec["devices"] = devices
	}
	if volumes, ok := config["volumes"]; ok {
		templateSpec["volumes"] = volumes
	}
	if networks, ok := config["networks"]; ok {
		templateSpec["networks"] = networks
	}

	spec := map[string]interface{}{
		"running": true,
		"template": map[string]interface{}{
			"spec": templateSpec,
		},
	}

	// The root disk is provisioned as a DataVolume so the approver's
	// storage class choice binds it. Volumes from the config win; the
	// rendered root volume only fills in when the config brings none.
	if order.StorageClass != "" || 0 < size.DiskGB {
		rootDisk := order.Name + "-rootdisk"
		storage := map[string]interface{}{}
		if order.StorageClass != "" {
			storage["storageClassName"] = order.StorageClass
		}
		if 0 < size.DiskGB {
			storage["resources"] = map[string]interface{}{
				"requests": map[string]interface{}{
					"storage": fmt.Sprintf("%dGi", size.DiskGB),
				},
			}
		}
		spec["dataVolumeTemplates"] = []interface{}{
			map[string]interface{}{
				"metadata": map[string]interface{}{"name": rootDisk},
				"spec":     map[string]interface{}{"storage": storage},
			},
		}
		if _, ok := config["volumes"]; !ok {
			templateSpec["volumes"] = []interface{}{
				map[string]interface{}{
					"name":       "rootdisk",
					"dataVolume": map[string]interface{}{"name": rootDisk},
				},
			}
		}
		if _, ok := config["devices"]; !ok {
			domainSpec["devices"] = map[string]interface{}{
				"disks": []interface{}{
					map[string]interface{}{
						"name": "rootdisk",
						"disk": map[string]interface{}{"bus": "virtio"},
					},
				},
			}
		}
	}

	vm := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": GVRVirtualMachine.Group + "/" + GVRVirtualMachine.Version,
		"kind":       "VirtualMachine",
		"metadata": map[string]interface{}{
			"name":      order.Name,
			"namespace": order.Namespace,
		},
		"spec": spec,
	}}
	return vm, nil
}
