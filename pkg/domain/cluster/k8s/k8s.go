package k8s

import (
	"context"

	kubecore "k8s.io/api/core/v1"
	kubestorage "k8s.io/api/storage/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// virtual machines as served by the KubeVirt apiserver.
var (
	GVRVirtualMachine = schema.GroupVersionResource{
		Group: "kubevirt.io", Version: "v1", Resource: "virtualmachines",
	}
	GVRVirtualMachineInstance = schema.GroupVersionResource{
		Group: "kubevirt.io", Version: "v1", Resource: "virtualmachineinstances",
	}
)

// subset of k8s.Clientset + dynamic.Interface, one per target cluster.
type Cluster interface {
	ServerVersion(ctx context.Context) (string, error)
	ListNodes(ctx context.Context) ([]kubecore.Node, error)
	ListStorageClasses(ctx context.Context) ([]kubestorage.StorageClass, error)

	GetVM(ctx context.Context, namespace string, name string) (*unstructured.Unstructured, error)
	CreateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error)
	UpdateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error)
	DeleteVM(ctx context.Context, namespace string, name string) error
	PatchVM(ctx context.Context, namespace string, name string, patch []byte) (*unstructured.Unstructured, error)
	DeleteVMInstance(ctx context.Context, namespace string, name string) error
}

// A wrapper over the two clients; because it does not prefer method
// chain-style invocations of those types.
type cluster struct {
	client  *k8s.Clientset
	dynamic dynamic.Interface
}

// type check: cluster implements Cluster
var _ Cluster = &cluster{}

func (c *cluster) ServerVersion(ctx context.Context) (string, error) {
	v, err := c.client.Discovery().ServerVersion()
	if err != nil {
		return "", err
	}
	return v.GitVersion, nil
}

func (c *cluster) ListNodes(ctx context.Context) ([]kubecore.Node, error) {
	resp, err := c.client.CoreV1().Nodes().List(ctx, kubeapimeta.ListOptions{})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *cluster) ListStorageClasses(ctx context.Context) ([]kubestorage.StorageClass, error) {
	resp, err := c.client.StorageV1().StorageClasses().List(ctx, kubeapimeta.ListOptions{})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *cluster) GetVM(ctx context.Context, namespace string, name string) (*unstructured.Unstructured, error) {
	return c.dynamic.Resource(GVRVirtualMachine).Namespace(namespace).
		Get(ctx, name, kubeapimeta.GetOptions{})
}

func (c *cluster) CreateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return c.dynamic.Resource(GVRVirtualMachine).Namespace(namespace).
		Create(ctx, vm, kubeapimeta.CreateOptions{})
}

func (c *cluster) UpdateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return c.dynamic.Resource(GVRVirtualMachine).Namespace(namespace).
		Update(ctx, vm, kubeapimeta.UpdateOptions{})
}

func (c *cluster) DeleteVM(ctx context.Context, namespace string, name string) error {
	return c.dynamic.Resource(GVRVirtualMachine).Namespace(namespace).
		Delete(ctx, name, kubeapimeta.DeleteOptions{})
}

func (c *cluster) PatchVM(ctx context.Context, namespace string, name string, patch []byte) (*unstructured.Unstructured, error) {
	return c.dynamic.Resource(GVRVirtualMachine).Namespace(namespace).
		Patch(ctx, name, types.MergePatchType, patch, kubeapimeta.PatchOptions{})
}

func (c *cluster) DeleteVMInstance(ctx context.Context, namespace string, name string) error {
	return c.dynamic.Resource(GVRVirtualMachineInstance).Namespace(namespace).
		Delete(ctx, name, kubeapimeta.DeleteOptions{})
}

func Wrap(client *k8s.Clientset, dyn dynamic.Interface) Cluster {
	return &cluster{client: client, dynamic: dyn}
}

// Connect builds a Cluster from kubeconfig.
//
// Empty kubeconfig falls back to in-cluster config.
func Connect(kubeconfig string) (Cluster, error) {
	var config *rest.Config
	var err error
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, err
	}

	client, err := k8s.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, err
	}
	return Wrap(client, dyn), nil
}
