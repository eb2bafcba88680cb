package hook

import (
	cfg_hook "github.com/cloudpasture/shepherd/pkg/configs/hook"
)

// Build binds a webhook configuration to a payload type.
func Build[T any, R any](cfg cfg_hook.WebHook, merge func(a, b R) R) Web[T, R] {
	return Web[T, R]{
		BeforeURL: cfg.Before,
		AfterURL:  cfg.After,
		Merge:     merge,
	}
}
