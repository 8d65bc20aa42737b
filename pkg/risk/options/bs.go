package options

import (
	"errors"
	"math"

	"max.com/optpricer/pkg/option"
)

var (
	// 错误信息，针对无效输入
	ErrInvalidInputs = errors.New("invalid inputs")
	// 隐含波动率迭代不收敛
	ErrNoConvergence = errors.New("failed to converge to implied volatility")
)

/*
Black-Scholes-Merton 闭式解 (连续分红率 q)。

格点定价器用它做交叉校验，以及深度不足时欧式期权的兜底：

Delta: 期权价格相对于标的价格的敏感度。
Gamma: Delta 对标的价格的敏感度。
Vega:  期权价格相对于波动率的敏感度。
Theta: 期权价格相对于时间流逝的敏感度 (年化)。
Rho:   期权价格相对于无风险利率的敏感度。
*/

// PriceCallBS 欧式看涨期权价格
// S: 标的现价, K: 行权价, r: 无风险利率, q: 连续分红率, sigma: 年化波动率, T: 剩余期限(年)
func PriceCallBS(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return 0, err
	}

	// 到期时就是内在价值
	if T == 0 {
		return math.Max(S-K, 0), nil
	}

	// 波动率为 0，价格是确定的：max(S·e^{-qT} - K·e^{-rT}, 0)
	if sigma == 0 {
		return math.Max(S*math.Exp(-q*T)-K*math.Exp(-r*T), 0), nil
	}

	d1 := calcD1(S, K, r, q, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)

	call := S*math.Exp(-q*T)*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
	return call, nil
}

// PricePutBS 欧式看跌期权价格
func PricePutBS(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return 0, err
	}

	if T == 0 {
		return math.Max(K-S, 0), nil
	}

	if sigma == 0 {
		return math.Max(K*math.Exp(-r*T)-S*math.Exp(-q*T), 0), nil
	}

	d1 := calcD1(S, K, r, q, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)

	put := K*math.Exp(-r*T)*normCDF(-d2) - S*math.Exp(-q*T)*normCDF(-d1)
	return put, nil
}

// Price 按方向分发
func Price(right option.Right, S, K, r, q, sigma, T float64) (float64, error) {
	if right == option.Put {
		return PricePutBS(S, K, r, q, sigma, T)
	}
	return PriceCallBS(S, K, r, q, sigma, T)
}

// ImpliedVolatility 通过期权市场价格反推隐含波动率 (牛顿法)
func ImpliedVolatility(right option.Right, S, K, r, q, T, marketPrice float64) (float64, error) {
	// 初始猜测波动率，通常从 20% 开始
	sigma := 0.2
	tolerance := 1e-8
	maxIterations := 100

	for i := 0; i < maxIterations; i++ {
		optionPrice, err := Price(right, S, K, r, q, sigma, T)
		if err != nil {
			return 0, err
		}

		vega, err := Vega(S, K, r, q, sigma, T)
		if err != nil {
			return 0, err
		}

		priceError := marketPrice - optionPrice
		if math.Abs(priceError) < tolerance {
			return sigma, nil
		}

		// Vega 过小时牛顿步会飞出去
		if vega < 1e-12 {
			return 0, ErrNoConvergence
		}

		sigma = sigma + priceError/vega
		if sigma <= 0 {
			sigma = 1e-4
		}
	}

	return 0, ErrNoConvergence
}

// DeltaCall 看涨 Delta
func DeltaCall(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	return math.Exp(-q*T) * normCDF(d1), nil
}

// DeltaPut 看跌 Delta
func DeltaPut(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	return -math.Exp(-q*T) * normCDF(-d1), nil
}

// Gamma 看涨看跌相同
func Gamma(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	return math.Exp(-q*T) * normPDF(d1) / (S * sigma * math.Sqrt(T)), nil
}

// Vega 看涨看跌相同
func Vega(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	return S * math.Exp(-q*T) * math.Sqrt(T) * normPDF(d1), nil
}

// ThetaCall 看涨 Theta (年化)
func ThetaCall(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)
	disc := math.Exp(-q * T)

	theta := -S*disc*normPDF(d1)*sigma/(2*math.Sqrt(T)) -
		r*K*math.Exp(-r*T)*normCDF(d2) +
		q*S*disc*normCDF(d1)
	return theta, nil
}

// ThetaPut 看跌 Theta (年化)
func ThetaPut(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d1 := calcD1(S, K, r, q, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)
	disc := math.Exp(-q * T)

	theta := -S*disc*normPDF(d1)*sigma/(2*math.Sqrt(T)) +
		r*K*math.Exp(-r*T)*normCDF(-d2) -
		q*S*disc*normCDF(-d1)
	return theta, nil
}

// RhoCall 看涨 Rho
func RhoCall(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d2 := calcD1(S, K, r, q, sigma, T) - sigma*math.Sqrt(T)
	return K * T * math.Exp(-r*T) * normCDF(d2), nil
}

// RhoPut 看跌 Rho
func RhoPut(S, K, r, q, sigma, T float64) (float64, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	d2 := calcD1(S, K, r, q, sigma, T) - sigma*math.Sqrt(T)
	return -K * T * math.Exp(-r*T) * normCDF(-d2), nil
}

// Greeks 一次算出全部闭式 Greeks
type Greeks struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// All 按方向计算价格和全部 Greeks
func All(right option.Right, S, K, r, q, sigma, T float64) (Greeks, error) {
	if err := validateGreekInputs(S, K, sigma, T); err != nil {
		return Greeks{}, err
	}
	var g Greeks
	g.Price, _ = Price(right, S, K, r, q, sigma, T)
	g.Gamma, _ = Gamma(S, K, r, q, sigma, T)
	g.Vega, _ = Vega(S, K, r, q, sigma, T)
	if right == option.Put {
		g.Delta, _ = DeltaPut(S, K, r, q, sigma, T)
		g.Theta, _ = ThetaPut(S, K, r, q, sigma, T)
		g.Rho, _ = RhoPut(S, K, r, q, sigma, T)
	} else {
		g.Delta, _ = DeltaCall(S, K, r, q, sigma, T)
		g.Theta, _ = ThetaCall(S, K, r, q, sigma, T)
		g.Rho, _ = RhoCall(S, K, r, q, sigma, T)
	}
	return g, nil
}

// validateBSInputs 检查 Black-Scholes 输入的有效性
func validateBSInputs(S, K, sigma, T float64) error {
	// 当前标的价格和执行价必须大于零
	if S <= 0 || K <= 0 {
		return ErrInvalidInputs
	}
	// 波动率和到期时间不能为负
	if sigma < 0 || T < 0 {
		return ErrInvalidInputs
	}
	return nil
}

// validateGreekInputs Greeks 需要 sigma>0, T>0，否则 d1 无定义
func validateGreekInputs(S, K, sigma, T float64) error {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return err
	}
	if sigma == 0 || T == 0 {
		return ErrInvalidInputs
	}
	return nil
}

// calcD1 计算 d1
// d1 = [ln(S/K) + (r - q + 0.5*sigma^2)T] / (sigma * sqrt(T))
func calcD1(S, K, r, q, sigma, T float64) float64 {
	return (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
}

// normCDF 标准正态分布的 CDF
// N(x) = 0.5 * (1 + erf(x / sqrt(2)))
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

// normPDF 标准正态分布的 PDF
func normPDF(x float64) float64 {
	return (1.0 / math.Sqrt(2*math.Pi)) * math.Exp(-0.5*x*x)
}
