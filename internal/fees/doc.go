// Package fees implements the brokerage fee and break-even calculation engine
// for equity trades.
//
// The package is pure: every computation is a function over immutable inputs
// with no internal state, so a single Calculator can be shared freely across
// goroutines. Callers own the lot lists and pass snapshots in.
//
// Four calculation surfaces are exposed:
//
// SingleTrade: buy/sell profit and loss for one fill under a selectable fee
// policy and formula convention.
//
// BreakEven / ProfitTargets: break-even sell price derivation plus required
// sell prices for a ladder of profit-percentage targets.
//
// Position: weighted-average aggregation over multiple purchase lots with a
// profit/loss scenario table across candidate sell prices.
//
// Intraday: matched-quantity fee relief across independent buy and sell lot
// lists, where the brokerage component of the fee is waived on the overlapping
// quantity while the transaction levy is always charged.
//
// Historical revisions of the calculator disagreed on the exact break-even
// formula. Each observed convention is preserved as a CalcMode value rather
// than picking one as authoritative, so any historical behaviour can be
// reproduced by configuration.
package fees
