package vec

// Mat4 представляет аффинное преобразование (вращение + перенос) в
// row-major форме. Используется как кэшируемая матрица острова и чанка
// (island.GetTransformMatrix / island.GetChunkTransform).
type Mat4 struct {
	// m[row][col]; последняя строка всегда [0 0 0 1] для аффинных преобразований.
	m [4][4]float64
}

// Mat4Identity возвращает единичную матрицу.
func Mat4Identity() Mat4 {
	var r Mat4
	r.m[0][0], r.m[1][1], r.m[2][2], r.m[3][3] = 1, 1, 1, 1
	return r
}

// Mat4Translate возвращает матрицу переноса.
func Mat4Translate(t Vec3Float) Mat4 {
	r := Mat4Identity()
	r.m[0][3], r.m[1][3], r.m[2][3] = t.X, t.Y, t.Z
	return r
}

// Mat4FromQuat возвращает матрицу вращения из кватерниона.
func Mat4FromQuat(q Quat) Mat4 {
	r := Mat4Identity()
	rot := q.ToMat3()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.m[row][col] = rot[row*3+col]
		}
	}
	return r
}

// Mul composes this*other (applies other first, then this — matching the
// teacher's T(center)·R(orientation)·T(chunkCoord*S) composition order).
func (a Mat4) Mul(b Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a.m[row][k] * b.m[k][col]
			}
			r.m[row][col] = sum
		}
	}
	return r
}

// TransformPoint applies the matrix to a point (w=1).
func (a Mat4) TransformPoint(p Vec3Float) Vec3Float {
	return Vec3Float{
		X: a.m[0][0]*p.X + a.m[0][1]*p.Y + a.m[0][2]*p.Z + a.m[0][3],
		Y: a.m[1][0]*p.X + a.m[1][1]*p.Y + a.m[1][2]*p.Z + a.m[1][3],
		Z: a.m[2][0]*p.X + a.m[2][1]*p.Y + a.m[2][2]*p.Z + a.m[2][3],
	}
}

// Inverse returns the inverse of an affine rigid transform (rotation is
// orthonormal, so the inverse is transpose(R) and -transpose(R)*t).
func (a Mat4) Inverse() Mat4 {
	var r Mat4
	// Transpose the 3x3 rotation block.
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.m[row][col] = a.m[col][row]
		}
	}
	tx, ty, tz := a.m[0][3], a.m[1][3], a.m[2][3]
	r.m[0][3] = -(r.m[0][0]*tx + r.m[0][1]*ty + r.m[0][2]*tz)
	r.m[1][3] = -(r.m[1][0]*tx + r.m[1][1]*ty + r.m[1][2]*tz)
	r.m[2][3] = -(r.m[2][0]*tx + r.m[2][1]*ty + r.m[2][2]*tz)
	r.m[3][3] = 1
	return r
}
