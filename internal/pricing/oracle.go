// Package pricing は保有銘柄の現在価格シミュレーションと評価額計算を提供する。
//
// 実際の市場データ連携は行わない。現在価格は銘柄名と時刻バケット（1時間単位）から
// 決定論的に導出する疑似乱数で生成し、同一時間内の再取得では常に同じ価格を返す。
package pricing

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// bucketSeconds は価格が安定する時間窓の幅（秒）。
// Unix時刻をこの値で整数除算した商をバケットとして扱う。
const bucketSeconds = 3600

// Oracle は決定論的な価格シミュレーターを表す。
// 可変状態を持たず、複数goroutineから同時に呼び出して安全。
type Oracle struct {
	now func() time.Time
}

// NewOracle はシステムクロックを使用するOracleを生成する。
func NewOracle() *Oracle {
	return &Oracle{now: time.Now}
}

// NewOracleWithClock は指定したクロック関数を使用するOracleを生成する。
// テストで時刻バケットを固定するために使用する。
func NewOracleWithClock(now func() time.Time) *Oracle {
	return &Oracle{now: now}
}

// SimulatePrice は銘柄名と購入価格から現在価格をシミュレートする。
//
// 生成される価格は購入価格の±5%の範囲に収まり、同じ銘柄名・同じ時間バケットの
// 組み合わせに対しては常に同一の値を返す。バケットが変わると価格も変わる。
// buyPriceが0以下の場合はエラーにせず、そのまま返す。
// 返り値は小数第2位に丸められる。
func (o *Oracle) SimulatePrice(stockName string, buyPrice float64) float64 {
	if buyPrice <= 0 {
		return buyPrice
	}

	bucket := o.now().Unix() / bucketSeconds
	fraction := hashFraction(fmt.Sprintf("%s_%d", stockName, bucket))

	// [0,1)の疑似乱数を[-0.05,+0.05)の変動率にマッピングする
	variation := (fraction - 0.5) * 0.10

	price := buyPrice * (1 + variation)

	// 変動率の範囲上ここには到達しないが、負値の混入を防ぐ
	if price <= 0 {
		price = buyPrice
	}

	return Round2(price)
}

// hashFraction はシード文字列から[0,1)の決定論的な値を導出する。
// MD5ダイジェストの先頭8桁（16進）を整数として読み、10000で剰余を取って正規化する。
// この構成は既存クライアントの価格フィクスチャと互換でなければならない。
func hashFraction(seed string) float64 {
	sum := md5.Sum([]byte(seed))
	hexDigest := hex.EncodeToString(sum[:])

	n, err := strconv.ParseUint(hexDigest[:8], 16, 64)
	if err != nil {
		// 16進8桁のパースは失敗しない
		return 0
	}

	return float64(n%10000) / 10000.0
}
