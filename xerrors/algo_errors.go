package xerrors

var (
	// ErrDomain 数学函数参数超出定义域。
	ErrDomain = New(ErrInvalidArg, 400101, "argument out of domain", "", nil)
	// ErrInvalidRange 查询区间非法。
	ErrInvalidRange = New(ErrInvalidArg, 400102, "invalid query range", "", nil)
	// ErrNonEmptyOutput 输出容器必须为空。
	ErrNonEmptyOutput = New(ErrInvalidArg, 400103, "output container must be empty", "", nil)
	// ErrMatrixShape 稀疏表矩阵尺寸不足。
	ErrMatrixShape = New(ErrInvalidArg, 400104, "sparse table matrix too small", "", nil)
	// ErrLengthMismatch 欧拉序列与深度序列长度不一致。
	ErrLengthMismatch = New(ErrInvalidArg, 400105, "tour and depth length mismatch", "", nil)
	// ErrUnknownVertex 顶点不在树中。
	ErrUnknownVertex = New(ErrNotFound, 404101, "unknown vertex", "", nil)
	// ErrIndexNotFound 指定名称的索引不存在。
	ErrIndexNotFound = New(ErrNotFound, 404102, "index not found", "", nil)
	// ErrNotTree 输入图不是一棵有根树。
	ErrNotTree = New(ErrFailedPrecondition, 412101, "graph is not a rooted tree", "", nil)
	// ErrSourceUnavailable 树数据源读取失败。
	ErrSourceUnavailable = New(ErrUnavailable, 503101, "tree source unavailable", "", nil)
	// ErrCircuitOpen 熔断器处于打开状态。
	ErrCircuitOpen = New(ErrUnavailable, 503102, "service unavailable: circuit breaker is open", "", nil)
)

// Precondition 以哨兵错误为模板触发 panic。
// 用于调用方违反前置条件的场景（越界区间、未知顶点等），这类错误不可恢复。
func Precondition(sentinel *Error, format string, args ...any) {
	panic(sentinel.Derive(format, args...))
}
