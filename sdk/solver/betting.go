package solver

// bettingTokens names the characters a game uses for one limit betting
// round. Check and fold may share a token: it means check when there is no
// bet to face and fold otherwise.
type bettingTokens struct {
	check byte
	fold  byte
	bet   byte
	call  byte
}

// bettingRound is the replayed state of one limit betting round. Seat 0
// always acts first.
type bettingRound struct {
	toAct  int
	bets   int
	facing bool
	checks int
	closed bool
	folder int
}

// playBetting replays seg, charging contributions at unit per bet. It fails
// on tokens that are illegal at their point in the round, on a fifth bet
// past maxBets and on tokens after the round has ended.
func playBetting(seg string, tokens bettingTokens, unit float64, maxBets int, contrib *[2]float64) (bettingRound, bool) {
	r := bettingRound{folder: -1}
	for i := 0; i < len(seg); i++ {
		if r.closed || r.folder >= 0 {
			return r, false
		}
		ch := seg[i]
		other := 1 - r.toAct
		switch {
		case r.facing && ch == tokens.fold:
			r.folder = r.toAct
		case !r.facing && ch == tokens.check:
			r.checks++
			if r.checks == 2 {
				r.closed = true
			}
		case ch == tokens.bet:
			if r.bets >= maxBets {
				return r, false
			}
			contrib[r.toAct] = contrib[other] + unit
			r.bets++
			r.facing = true
		case r.facing && ch == tokens.call:
			contrib[r.toAct] = contrib[other]
			r.closed = true
		default:
			return r, false
		}
		r.toAct = other
	}
	return r, true
}

// legal lists the moves available in an open round. sep is appended to the
// moves that close the round.
func (r bettingRound) legal(tokens bettingTokens, maxBets int, sep string) []string {
	var out []string
	if r.facing {
		out = append(out, string(tokens.fold), string(tokens.call)+sep)
	} else if r.checks == 1 {
		out = append(out, string(tokens.check)+sep)
	} else {
		out = append(out, string(tokens.check))
	}
	if r.bets < maxBets {
		out = append(out, string(tokens.bet))
	}
	return out
}

// foldUtility pays the folder's contribution to the other seat.
func foldUtility(folder int, contrib [2]float64) [2]float64 {
	var u [2]float64
	u[folder] = -contrib[folder]
	u[1-folder] = contrib[folder]
	return u
}

// showdownUtility pays the loser's contribution to the winner. cmp is
// negative when seat 0 wins, positive when seat 1 wins and zero on a tie.
func showdownUtility(cmp int, contrib [2]float64) [2]float64 {
	switch {
	case cmp < 0:
		return [2]float64{contrib[1], -contrib[1]}
	case cmp > 0:
		return [2]float64{-contrib[0], contrib[0]}
	default:
		return [2]float64{}
	}
}
