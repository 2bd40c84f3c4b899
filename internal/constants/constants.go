package constants

// 码状态常量
const (
	CodeStatusAvailable       = "available"
	CodeStatusReserved        = "reserved"
	CodeStatusOwnedUnassigned = "owned_unassigned"
	CodeStatusAssigned        = "assigned"
	CodeStatusPurchased       = "purchased"
	CodeStatusDamaged         = "damaged"
	CodeStatusLost            = "lost"
)

// 批次生命周期状态常量
const (
	BatchStatusGenerated = "generated"
	BatchStatusExporting = "exporting"
	BatchStatusPrinting  = "printing"
	BatchStatusPrinted   = "printed"
	BatchStatusShipped   = "shipped"
	BatchStatusReceived  = "received"
	BatchStatusActive    = "active"
	BatchStatusDepleted  = "depleted"
)

// 分配动作常量
const (
	AllocationActionReserve    = "reserve"
	AllocationActionAssign     = "assign"
	AllocationActionRelease    = "release"
	AllocationActionReprint    = "reprint"
	AllocationActionPurchase   = "purchase"
	AllocationActionDamage     = "damage"
	AllocationActionReportLost = "report_lost"
	AllocationActionRestore    = "restore"
	AllocationActionCancel     = "cancel"
	AllocationActionExpire     = "expire"
)

// 打印任务状态常量
const (
	PrintRunStatusRequested = "requested"
	PrintRunStatusQueued    = "queued"
	PrintRunStatusCompleted = "completed"
)

// 异步任务类型常量
const (
	TaskReservationExpire = "reservation:expire"
	TaskReservationSweep  = "reservation:sweep"
	TaskLowStockAlert     = "inventory:low_stock_alert"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 分配引擎默认值常量
const (
	DefaultMaxReserveAttempts    = 5
	DefaultReservationTTLSeconds = 900
	DefaultLowStockThreshold     = 20
)

// 操作者角色常量
const (
	ActorRoleAdmin    = "admin"
	ActorRoleBusiness = "business"
	ActorRoleSystem   = "system"
)
