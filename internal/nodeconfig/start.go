package nodeconfig

import (
	"github.com/mesh-intelligence/journey/pkg/types"
)

// Start task types.
const (
	TaskMarketing    = "marketing"
	TaskNotification = "notification"
	TaskSurvey       = "survey"
	TaskRetention    = "retention"
)

const defaultStartColor = "#5F95FF"

var taskColors = map[string]string{
	TaskMarketing:    "#FF6B6B",
	TaskNotification: "#4ECDC4",
	TaskSurvey:       "#45B7D1",
	TaskRetention:    "#96CEB4",
}

var taskLabels = map[string]string{
	TaskMarketing:    "营销活动",
	TaskNotification: "通知推送",
	TaskSurvey:       "问卷调研",
	TaskRetention:    "用户留存",
}

// StartStrategy configures the journey entry node. Its color and label
// follow the task type.
type StartStrategy struct {
	Base
}

// NewStartStrategy returns the start node strategy.
func NewStartStrategy() *StartStrategy {
	return &StartStrategy{Base: Base{Type: types.NodeTypeStart}}
}

// ValidateConfig requires taskType, when present, to be a known type.
func (s *StartStrategy) ValidateConfig(cfg map[string]any) ValidationResult {
	var errs []string
	if present(cfg, "taskType") {
		if _, ok := taskColors[str(cfg, "taskType")]; !ok {
			errs = append(errs, "任务类型必须是 marketing、notification、survey 或 retention 之一")
		}
	}
	return result(errs)
}

// UpdateNodeStyle colors the node by task type and labels it with the
// task type name.
func (s *StartStrategy) UpdateNodeStyle(node *types.Node, cfg map[string]any) {
	s.Base.UpdateNodeStyle(node, cfg)

	taskType := str(cfg, "taskType")
	color, ok := taskColors[taskType]
	if !ok {
		color = defaultStartColor
	}
	label := "开始"
	if taskType != "" {
		name, ok := taskLabels[taskType]
		if !ok {
			name = taskType
		}
		label = "开始\n(" + name + ")"
	}
	node.ApplyVisual(types.VisualPatch{FillColor: &color, StrokeColor: &color, Label: &label})
}
