package models

import "strconv"

// Credits is a count of generation credits. It is its own type so a balance
// can never be added to a price, a cent amount or a plain int without an
// explicit conversion.
type Credits int64

func (c Credits) Add(other Credits) Credits { return c + other }

func (c Credits) Sub(other Credits) Credits { return c - other }

func (c Credits) Neg() Credits { return -c }

func (c Credits) IsNegative() bool { return c < 0 }

func (c Credits) Int64() int64 { return int64(c) }

func (c Credits) String() string { return strconv.FormatInt(int64(c), 10) }
