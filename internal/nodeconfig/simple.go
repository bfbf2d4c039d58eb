package nodeconfig

// SimpleStrategy serves single-output nodes (ai-call, sms, manual-call,
// wait, end) and is the fallback for unknown node types.
type SimpleStrategy struct {
	Base
}

// NewSimpleStrategy returns a SimpleStrategy for nodeType.
func NewSimpleStrategy(nodeType string) *SimpleStrategy {
	return &SimpleStrategy{Base: Base{Type: nodeType}}
}

// ValidateConfig requires nodeName, when present, to be a string.
func (s *SimpleStrategy) ValidateConfig(cfg map[string]any) ValidationResult {
	var errs []string
	if present(cfg, "nodeName") {
		if _, ok := cfg["nodeName"].(string); !ok {
			errs = append(errs, "节点名称必须是字符串")
		}
	}
	return result(errs)
}
