package lattice

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration 树深度不足以保证风险中性概率落在 [0,1]
	ErrConfiguration = errors.New("lattice configuration error")
	// ErrDomain 输入越界：现价/行权价/深度非正，或行权时间序列非法
	ErrDomain = errors.New("lattice domain error")
	// ErrNumerical 计算过程中出现退化算术 (除零、非有限值)
	ErrNumerical = errors.New("lattice numerical error")
)

// ConfigurationError 深度不足，MinDepth 给出调用方可重试的最小深度
type ConfigurationError struct {
	Tree     string
	Depth    int
	MinDepth int
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s tree requires depth >= %d, got %d", e.Tree, e.MinDepth, e.Depth)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DomainError 某个输入参数违反前置条件
type DomainError struct {
	Param  string
	Value  any
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// NumericalError 退化算术，Quantity 标明出问题的量
type NumericalError struct {
	Quantity string
	Value    float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("degenerate %s (%v)", e.Quantity, e.Value)
}

func (e *NumericalError) Is(target error) bool { return target == ErrNumerical }

func domainErr(param string, value any, reason string) error {
	return &DomainError{Param: param, Value: value, Reason: reason}
}
