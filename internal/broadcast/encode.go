package broadcast

import (
	"bytes"
	"encoding/binary"

	"github.com/fxsim/backtester/internal/clock"
	"github.com/fxsim/backtester/internal/fixedpoint"
	"github.com/fxsim/backtester/internal/types"
)

// Every encode* function produces the exact little-endian byte layout its
// topic specifies, topic byte first. Prices that travel as raw fixed-point
// integers keep their int64 bit pattern; prices that travel as f64 are
// converted with the caller-supplied digits (a per-symbol property the
// broadcaster itself doesn't track).

func encodeTick(symbolID uint32, ts clock.Timestamp, bid, ask fixedpoint.Price) []byte {
	buf := make([]byte, 29)
	buf[0] = byte(TopicTick)
	binary.LittleEndian.PutUint32(buf[1:5], symbolID)
	binary.LittleEndian.PutUint64(buf[5:13], uint64(ts))
	binary.LittleEndian.PutUint64(buf[13:21], uint64(bid))
	binary.LittleEndian.PutUint64(buf[21:29], uint64(ask))

	return buf
}

func encodeBar(symbolID uint32, timeframeCode uint16, bar types.Bar) []byte {
	buf := make([]byte, 55)
	buf[0] = byte(TopicBar)
	binary.LittleEndian.PutUint32(buf[1:5], symbolID)
	binary.LittleEndian.PutUint16(buf[5:7], timeframeCode)
	binary.LittleEndian.PutUint64(buf[7:15], uint64(bar.Timestamp))
	binary.LittleEndian.PutUint64(buf[15:23], uint64(bar.Open))
	binary.LittleEndian.PutUint64(buf[23:31], uint64(bar.High))
	binary.LittleEndian.PutUint64(buf[31:39], uint64(bar.Low))
	binary.LittleEndian.PutUint64(buf[39:47], uint64(bar.Close))
	binary.LittleEndian.PutUint64(buf[47:55], uint64(bar.TickVolume))

	return buf
}

func encodeTrade(symbolID uint32, deal types.Deal, digits int) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TopicTrade))
	binary.Write(&buf, binary.LittleEndian, deal.Ticket)
	binary.Write(&buf, binary.LittleEndian, symbolID)
	binary.Write(&buf, binary.LittleEndian, int64(deal.Time))
	binary.Write(&buf, binary.LittleEndian, deal.Volume)
	binary.Write(&buf, binary.LittleEndian, deal.Price.ToFloat(digits))
	binary.Write(&buf, binary.LittleEndian, int64(deal.Profit))

	return buf.Bytes()
}

func encodeOrder(symbolID uint32, order types.PendingOrder, digits int) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TopicOrder))
	binary.Write(&buf, binary.LittleEndian, order.Ticket)
	binary.Write(&buf, binary.LittleEndian, symbolID)
	binary.Write(&buf, binary.LittleEndian, int64(order.TimeSetup))
	binary.Write(&buf, binary.LittleEndian, uint8(order.OrderType))
	binary.Write(&buf, binary.LittleEndian, order.VolumeCurrent)
	binary.Write(&buf, binary.LittleEndian, order.PriceOpen.ToFloat(digits))

	return buf.Bytes()
}

func encodeEquity(ts clock.Timestamp, account types.Account) []byte {
	buf := make([]byte, 41)
	buf[0] = byte(TopicEquity)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(ts))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(account.Balance))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(account.Equity))
	binary.LittleEndian.PutUint64(buf[25:33], uint64(account.Margin))
	binary.LittleEndian.PutUint64(buf[33:41], uint64(account.MarginFree))

	return buf
}

// encodeMargin fills topic 5, left unspecified by the wire format beyond
// its tag. It mirrors EQUITY's raw-scaled-integer convention for the money
// fields and adds margin_level as the plain ratio the account already
// carries (account.MarginLevelPercent), the same way ACCOUNT carries it.
func encodeMargin(ts clock.Timestamp, account types.Account) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TopicMargin))
	binary.Write(&buf, binary.LittleEndian, int64(ts))
	binary.Write(&buf, binary.LittleEndian, int64(account.Margin))
	binary.Write(&buf, binary.LittleEndian, int64(account.MarginFree))
	binary.Write(&buf, binary.LittleEndian, account.MarginLevelPercent)

	return buf.Bytes()
}

// encodePosition fills topic 6, likewise unspecified beyond its tag; prices
// ride as raw fixed-point integers, matching TICK/BAR/EQUITY rather than
// TRADE/ORDER's f64 convention, since a position update is logically closer
// to a price-state snapshot than an execution record.
func encodePosition(symbolID uint32, position types.Position) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TopicPosition))
	binary.Write(&buf, binary.LittleEndian, position.Ticket)
	binary.Write(&buf, binary.LittleEndian, symbolID)
	binary.Write(&buf, binary.LittleEndian, int64(position.TimeUpdate))
	binary.Write(&buf, binary.LittleEndian, uint8(position.Type))
	binary.Write(&buf, binary.LittleEndian, position.Volume)
	binary.Write(&buf, binary.LittleEndian, int64(position.PriceOpen))
	binary.Write(&buf, binary.LittleEndian, int64(position.PriceCurrent))
	binary.Write(&buf, binary.LittleEndian, int64(position.Profit))

	return buf.Bytes()
}

func encodeAccount(ts clock.Timestamp, account types.Account) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(TopicAccount))
	binary.Write(&buf, binary.LittleEndian, int64(ts))
	binary.Write(&buf, binary.LittleEndian, int64(account.Balance))
	binary.Write(&buf, binary.LittleEndian, int64(account.Equity))
	binary.Write(&buf, binary.LittleEndian, int64(account.Profit))
	binary.Write(&buf, binary.LittleEndian, account.MarginLevelPercent)

	return buf.Bytes()
}
