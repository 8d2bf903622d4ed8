// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供提示词库使用的 GORM 连接与连接池管理。

# 概述

Open 按 config.DatabaseConfig 选择 dialector（sqlite 使用纯 Go 的
glebarez/sqlite，另支持 postgres 与 mysql），打开连接后交给
PoolManager 统一管理连接池参数、后台健康检查与关闭流程。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Ping/Stats/
    Close/WithTransaction。
  - PoolConfig：最大空闲连接数、最大打开连接数、连接生命周期、
    空闲超时与健康检查间隔。sqlite 固定为单连接。
*/
package database
