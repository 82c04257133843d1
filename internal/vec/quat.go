package vec

import "math"

// Quat представляет ориентацию острова кватернионом. Композиция вращений
// всегда выполняется в порядке intrinsic XYZ (roll применяется первым,
// затем pitch, затем yaw), как того требует спецификация острова.
type Quat struct {
	W, X, Y, Z float64
}

// QuatIdentity возвращает единичный кватернион (без вращения).
func QuatIdentity() Quat {
	return Quat{W: 1}
}

// QuatFromEulerXYZ строит кватернион из углов Эйлера (радианы), применяя
// вращения вокруг X, затем Y, затем Z в собственной (intrinsic) системе
// координат вращаемого тела.
func QuatFromEulerXYZ(x, y, z float64) Quat {
	qx := quatFromAxisAngle(Vec3Float{X: 1}, x)
	qy := quatFromAxisAngle(Vec3Float{Y: 1}, y)
	qz := quatFromAxisAngle(Vec3Float{Z: 1}, z)
	return qx.Mul(qy).Mul(qz)
}

func quatFromAxisAngle(axis Vec3Float, angle float64) Quat {
	half := angle / 2
	s := math.Sin(half)
	return Quat{W: math.Cos(half), X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// Mul составляет два вращения: q.Mul(other) вращает сначала other, затем q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Normalized возвращает нормализованный кватернион.
func (q Quat) Normalized() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return QuatIdentity()
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// RotateVec применяет вращение к вектору.
func (q Quat) RotateVec(v Vec3Float) Vec3Float {
	u := Vec3Float{X: q.X, Y: q.Y, Z: q.Z}
	uvCross := u.Cross(v)
	uuvCross := u.Cross(uvCross)
	return v.Add(uvCross.Mul(2 * q.W)).Add(uuvCross.Mul(2))
}

// ToMat3 возвращает вращение в виде 3x3 матрицы, строками по 3 значения.
func (q Quat) ToMat3() [9]float64 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}
