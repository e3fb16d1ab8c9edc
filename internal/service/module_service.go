package service

import (
	"fmt"

	"pand-feedback-go/internal/model"
)

// ModuleService 提供模块目录与反馈类型的查询。
type ModuleService interface {
	List() []model.Module
	Get(id string) (model.Module, error)
	FeedbackTypes() []model.FeedbackTypeOption
}

type moduleService struct{}

// NewModuleService 创建一个新的 ModuleService。
func NewModuleService() ModuleService {
	return &moduleService{}
}

func (s *moduleService) List() []model.Module {
	return model.Modules()
}

func (s *moduleService) Get(id string) (model.Module, error) {
	mod, ok := model.FindModule(id)
	if !ok {
		return model.Module{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	return mod, nil
}

func (s *moduleService) FeedbackTypes() []model.FeedbackTypeOption {
	return model.FeedbackTypes()
}
