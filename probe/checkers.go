package probe

import (
	"context"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	Register("redis", CheckerFunc(CheckRedis))
	Register("mysql", CheckerFunc(CheckMySQL))
	Register("mongo", CheckerFunc(CheckTCP))
}

// CheckTCP 只确认端口可连接。
func CheckTCP(ctx context.Context, t Target) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.Addr(), err)
	}
	return conn.Close()
}

// CheckRedis 发送 PING，密码取自 REDIS_PASSWORD。
func CheckRedis(ctx context.Context, t Target) error {
	client := redis.NewClient(&redis.Options{
		Addr:       t.Addr(),
		Password:   t.Environment.Value("REDIS_PASSWORD"),
		MaxRetries: -1,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", t.Addr(), err)
	}
	return nil
}

// MySQLDSN 按容器环境变量生成 DSN，与编译器生成 JDBC 选项的凭据规则一致。
func MySQLDSN(t Target, database string) string {
	user := t.Environment.Value("MYSQL_USER")
	password := t.Environment.Value("MYSQL_PASSWORD")
	if user == "" || user == "root" {
		user = "root"
		password = t.Environment.Value("MYSQL_ROOT_PASSWORD")
	}
	if password == "" {
		password = "example"
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True", user, password, t.Addr(), database)
}

// CheckMySQL 建立连接并 ping 每个 collection 对应的库。
func CheckMySQL(ctx context.Context, t Target) error {
	databases := t.Collections
	if len(databases) == 0 {
		databases = []string{""}
	}
	for _, database := range databases {
		db, err := gorm.Open(mysql.Open(MySQLDSN(t, database)), &gorm.Config{
			Logger: logger.Discard,
		})
		if err != nil {
			return fmt.Errorf("mysql open %s/%s: %w", t.Addr(), database, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		err = sqlDB.PingContext(ctx)
		_ = sqlDB.Close()
		if err != nil {
			return fmt.Errorf("mysql ping %s/%s: %w", t.Addr(), database, err)
		}
	}
	return nil
}
