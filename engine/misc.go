// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"math"
)

func logf(x int) float64 {
	return math.Log(float64(x))
}

func powf(x, y float64) float64 {
	return math.Pow(x, y)
}
