package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Session describes who the client talks to the cluster as.
type Session struct {
	Context   string
	Cluster   string
	User      string
	Namespace string
	InCluster bool
}

// Client is the handle on the cluster holding the lookup tables. It is built
// once at startup and passed to whoever needs it.
type Client struct {
	clientset kubernetes.Interface
	config    *rest.Config
	session   Session
}

// ClientOptions contains additional options for creating a Kubernetes client
type ClientOptions struct {
	Context            string
	Namespace          string
	User               string
	Token              string
	InsecureSkipVerify bool
	Impersonate        string
	Timeout            string
}

// getPathSeparator returns the OS-specific path list separator
func getPathSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// loadingRules honours a KUBECONFIG-style list of paths.
func loadingRules(kubeconfig string) *clientcmd.ClientConfigLoadingRules {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()

	if kubeconfig != "" {
		var validPaths []string
		for _, path := range strings.Split(kubeconfig, getPathSeparator()) {
			if trimmed := strings.TrimSpace(path); trimmed != "" {
				validPaths = append(validPaths, trimmed)
			}
		}
		if len(validPaths) > 0 {
			rules.Precedence = validPaths
		}
	} else if home, err := os.UserHomeDir(); err == nil && home != "" {
		defaultPath := filepath.Join(home, ".kube", "config")
		if _, err := os.Stat(defaultPath); err == nil {
			rules.Precedence = []string{defaultPath}
		}
	}

	return rules
}

func overrides(opts *ClientOptions) *clientcmd.ConfigOverrides {
	o := &clientcmd.ConfigOverrides{}
	if opts == nil {
		return o
	}
	if opts.Context != "" {
		o.CurrentContext = opts.Context
	}
	if opts.Namespace != "" {
		o.Context.Namespace = opts.Namespace
	}
	if opts.User != "" {
		o.Context.AuthInfo = opts.User
	}
	if opts.Token != "" {
		o.AuthInfo.Token = opts.Token
	}
	if opts.InsecureSkipVerify {
		o.ClusterInfo.InsecureSkipTLSVerify = true
	}
	if opts.Impersonate != "" {
		o.AuthInfo.Impersonate = opts.Impersonate
	}
	if opts.Timeout != "" {
		o.Timeout = opts.Timeout
	}
	return o
}

// NewClientWithOptions creates a client from in-cluster config or, failing
// that, from kubeconfig with the given overrides.
func NewClientWithOptions(kubeconfig string, opts *ClientOptions) (*Client, error) {
	if config, err := rest.InClusterConfig(); err == nil {
		clientset, err := kubernetes.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create clientset: %w", err)
		}
		session := Session{InCluster: true, User: "serviceaccount"}
		if opts != nil {
			session.Namespace = opts.Namespace
		}
		return &Client{clientset: clientset, config: config, session: session}, nil
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules(kubeconfig),
		overrides(opts),
	)

	config, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	session, err := sessionFromClientConfig(clientConfig, opts)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		clientset: clientset,
		config:    config,
		session:   session,
	}, nil
}

// NewClientForInterface wraps an existing clientset, typically a fake one.
func NewClientForInterface(clientset kubernetes.Interface, session Session) *Client {
	return &Client{clientset: clientset, session: session}
}

func sessionFromClientConfig(cc clientcmd.ClientConfig, opts *ClientOptions) (Session, error) {
	raw, err := cc.RawConfig()
	if err != nil {
		return Session{}, fmt.Errorf("failed to read kubeconfig: %w", err)
	}

	contextName := raw.CurrentContext
	if opts != nil && opts.Context != "" {
		contextName = opts.Context
	}

	session := Session{Context: contextName}
	if kctx, ok := raw.Contexts[contextName]; ok {
		session.Cluster = kctx.Cluster
		session.User = kctx.AuthInfo
	}
	if opts != nil && opts.User != "" {
		session.User = opts.User
	}
	if opts != nil && opts.Impersonate != "" {
		session.User = opts.Impersonate
	}

	namespace, _, err := cc.Namespace()
	if err != nil {
		return Session{}, fmt.Errorf("failed to resolve namespace: %w", err)
	}
	session.Namespace = namespace

	return session, nil
}

// Session returns the identity the client was built with.
func (c *Client) Session() Session {
	return c.session
}

// GetConfigMap returns a single configmap
func (c *Client) GetConfigMap(ctx context.Context, namespace, name string) (*v1.ConfigMap, error) {
	return c.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
}

// ListConfigMaps returns configmaps in a namespace matching labelSelector
func (c *Client) ListConfigMaps(ctx context.Context, namespace, labelSelector string) ([]v1.ConfigMap, error) {
	list, err := c.clientset.CoreV1().ConfigMaps(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// WatchConfigMaps opens a watch on configmaps in a namespace matching
// labelSelector. The caller stops it.
func (c *Client) WatchConfigMaps(ctx context.Context, namespace, labelSelector string) (watch.Interface, error) {
	return c.clientset.CoreV1().ConfigMaps(namespace).Watch(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
}
